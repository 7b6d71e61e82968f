package raffle

import (
	"context"
	"sort"
	"sync"
	"time"

	"chama-connect/internal/database"
	"chama-connect/internal/models"
)

// fakeStore is an in-memory Store and Directory.
type fakeStore struct {
	mu sync.Mutex

	users    []models.User
	cycles   map[int64]*models.RaffleCycle
	nextID   int64
	winners  []models.RaffleWinner
	winnerID int64

	getErr      error
	recordErr   error
	raceCreate  bool
	createCalls int
	recordCalls int
}

func newFakeStore(users ...models.User) *fakeStore {
	return &fakeStore{users: users, cycles: map[int64]*models.RaffleCycle{}}
}

func cloneCycle(c *models.RaffleCycle) *models.RaffleCycle {
	out := *c
	out.EligibleUsers = append([]string{}, c.EligibleUsers...)
	out.DrawnUsers = append([]string{}, c.DrawnUsers...)
	return &out
}

func (f *fakeStore) UpdateRaffleSettings(ctx context.Context, winnersPerPeriod int, active bool, updatedBy string) (*models.RaffleSettings, error) {
	return &models.RaffleSettings{ID: 1, WinnersPerPeriod: winnersPerPeriod, Active: active, UpdatedBy: updatedBy}, nil
}

func (f *fakeStore) findCycle(year, month int) *models.RaffleCycle {
	for _, c := range f.cycles {
		if c.Year == year && c.Month == month {
			return c
		}
	}
	return nil
}

func (f *fakeStore) GetCycle(ctx context.Context, year, month int) (*models.RaffleCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if c := f.findCycle(year, month); c != nil {
		return cloneCycle(c), nil
	}
	return nil, database.ErrCycleNotFound
}

func (f *fakeStore) GetCycleByID(ctx context.Context, id int64) (*models.RaffleCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cycles[id]
	if !ok {
		return nil, database.ErrCycleNotFound
	}
	return cloneCycle(c), nil
}

func (f *fakeStore) LatestCycleBetween(ctx context.Context, year, fromMonth, beforeMonth int) (*models.RaffleCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.RaffleCycle
	for _, c := range f.cycles {
		if c.Year != year || c.Month < fromMonth || c.Month >= beforeMonth {
			continue
		}
		if best == nil || c.Month > best.Month {
			best = c
		}
	}
	if best == nil {
		return nil, database.ErrCycleNotFound
	}
	return cloneCycle(best), nil
}

func (f *fakeStore) insertCycle(c models.RaffleCycle) *models.RaffleCycle {
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	stored := cloneCycle(&c)
	f.cycles[c.ID] = stored
	return stored
}

func (f *fakeStore) CreateCycle(ctx context.Context, c models.RaffleCycle) (*models.RaffleCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.raceCreate {
		// another request wins the insert
		f.raceCreate = false
		f.insertCycle(c)
		return nil, database.ErrCycleExists
	}
	if f.findCycle(c.Year, c.Month) != nil {
		return nil, database.ErrCycleExists
	}
	return cloneCycle(f.insertCycle(c)), nil
}

func (f *fakeStore) AddCycleMembers(ctx context.Context, cycleID int64, userIDs []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cycles[cycleID]
	if !ok {
		return 0, database.ErrCycleNotFound
	}
	added := 0
	for _, id := range userIDs {
		if contains(c.EligibleUsers, id) || contains(c.DrawnUsers, id) {
			continue
		}
		c.EligibleUsers = append(c.EligibleUsers, id)
		added++
	}
	c.PoolSize += added
	return added, nil
}

func (f *fakeStore) RecordDraw(ctx context.Context, rec database.DrawRecord) (*models.RaffleCycle, []models.RaffleWinner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordCalls++
	if f.recordErr != nil {
		return nil, nil, f.recordErr
	}
	c, ok := f.cycles[rec.CycleID]
	if !ok || c.WinnersCount != rec.ExpectedWinnersCount || c.IsCompleted {
		return nil, nil, database.ErrCycleChanged
	}

	offset := 0
	for _, w := range f.winners {
		if len(rec.Winners) > 0 && w.RafflePeriod.Equal(rec.Winners[0].RafflePeriod) && w.Position > offset {
			offset = w.Position
		}
	}
	inserted := make([]models.RaffleWinner, 0, len(rec.Winners))
	for _, w := range rec.Winners {
		c.EligibleUsers = without(c.EligibleUsers, w.UserID)
		c.DrawnUsers = append(c.DrawnUsers, w.UserID)
		f.winnerID++
		w.ID = f.winnerID
		w.Position += offset
		w.CreatedAt = time.Now()
		f.winners = append(f.winners, w)
		inserted = append(inserted, w)
	}
	c.WinnersCount = rec.WinnersCount
	c.IsCompleted = rec.IsCompleted
	d := rec.DrawingDate
	c.DrawingDate = &d
	return cloneCycle(c), inserted, nil
}

func (f *fakeStore) ListWinners(ctx context.Context, period time.Time) ([]models.WinnerWithUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.WinnerWithUser{}
	for _, w := range f.winners {
		if !w.RafflePeriod.Equal(period) {
			continue
		}
		item := models.WinnerWithUser{RaffleWinner: w}
		for _, u := range f.users {
			if u.ID == w.UserID {
				item.Name = u.Name
				item.Email = u.Email
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeStore) UpdateWinnerPayment(ctx context.Context, id int64, status models.PaymentStatus, paidAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.winners {
		if f.winners[i].ID == id {
			f.winners[i].PaymentStatus = status
			f.winners[i].PaymentDate = paidAt
			return nil
		}
	}
	return database.ErrWinnerNotFound
}

func (f *fakeStore) winner(id int64) models.RaffleWinner {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.winners {
		if w.ID == id {
			return w
		}
	}
	return models.RaffleWinner{}
}

func (f *fakeStore) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.Status == models.UserStatusActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		for _, u := range f.users {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type fakeSettings struct {
	st            models.RaffleSettings
	err           error
	invalidations int
}

func (f *fakeSettings) Get(ctx context.Context) (*models.RaffleSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	st := f.st
	return &st, nil
}

func (f *fakeSettings) Invalidate() { f.invalidations++ }

type fakeNotifier struct {
	err        error
	calls      int
	recipients []models.User
	last       models.Announcement
}

func (f *fakeNotifier) SendWinnersAnnouncement(ctx context.Context, recipients []models.User, a models.Announcement) error {
	f.calls++
	f.recipients = recipients
	f.last = a
	return f.err
}

// orderShuffler arranges the first len(order) slots so that slot k holds the
// element originally at index order[k]. Later slots keep whatever is left.
type orderShuffler struct {
	order []int
}

func (o *orderShuffler) Shuffle(n int, swap func(i, j int)) {
	cur := make([]int, n)
	for i := range cur {
		cur[i] = i
	}
	for k, want := range o.order {
		if k >= n {
			return
		}
		for p := k; p < n; p++ {
			if cur[p] == want {
				if p != k {
					swap(k, p)
					cur[k], cur[p] = cur[p], cur[k]
				}
				break
			}
		}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

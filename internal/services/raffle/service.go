package raffle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chama-connect/internal/database"
	"chama-connect/internal/models"
	"chama-connect/internal/util/payoutref"
)

// Store is the persistence the engine needs. *database.Store satisfies it.
type Store interface {
	UpdateRaffleSettings(ctx context.Context, winnersPerPeriod int, active bool, updatedBy string) (*models.RaffleSettings, error)
	GetCycle(ctx context.Context, year, month int) (*models.RaffleCycle, error)
	GetCycleByID(ctx context.Context, id int64) (*models.RaffleCycle, error)
	LatestCycleBetween(ctx context.Context, year, fromMonth, beforeMonth int) (*models.RaffleCycle, error)
	CreateCycle(ctx context.Context, c models.RaffleCycle) (*models.RaffleCycle, error)
	AddCycleMembers(ctx context.Context, cycleID int64, userIDs []string) (int, error)
	RecordDraw(ctx context.Context, rec database.DrawRecord) (*models.RaffleCycle, []models.RaffleWinner, error)
	ListWinners(ctx context.Context, period time.Time) ([]models.WinnerWithUser, error)
	UpdateWinnerPayment(ctx context.Context, id int64, status models.PaymentStatus, paidAt *time.Time) error
}

type SettingsSource interface {
	Get(ctx context.Context) (*models.RaffleSettings, error)
	Invalidate()
}

// Directory resolves members. ListActiveUsers must return a stable order.
type Directory interface {
	ListActiveUsers(ctx context.Context) ([]models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type Notifier interface {
	SendWinnersAnnouncement(ctx context.Context, recipients []models.User, a models.Announcement) error
}

// Shuffler permutes n elements through swap. *math/rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type Config struct {
	Payout decimal.Decimal
	// Rand defaults to a time-seeded math/rand source.
	Rand Shuffler
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store     Store
	settings  SettingsSource
	directory Directory
	notifier  Notifier
	logger    *slog.Logger
	payout    decimal.Decimal
	now       func() time.Time

	mu  sync.Mutex
	rng Shuffler
}

type DrawResult struct {
	Cycle      *models.RaffleCycle   `json:"cycle"`
	NewWinners []models.User         `json:"newWinners"`
	Winners    []models.RaffleWinner `json:"winners"`
}

type WinnersReport struct {
	Year    int                     `json:"year"`
	Month   int                     `json:"month"`
	Cycle   *models.RaffleCycle     `json:"cycle,omitempty"`
	Winners []models.WinnerWithUser `json:"winners"`
	Message string                  `json:"message,omitempty"`
}

func NewService(store Store, settings SettingsSource, directory Directory, notifier Notifier, logger *slog.Logger, cfg Config) *Service {
	rng := cfg.Rand
	if rng == nil {
		rng = mrand.New(mrand.NewSource(time.Now().UnixNano()))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		settings:  settings,
		directory: directory,
		notifier:  notifier,
		logger:    logger,
		payout:    cfg.Payout,
		now:       now,
		rng:       rng,
	}
}

func (s *Service) GetSettings(ctx context.Context) (*models.RaffleSettings, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, persistErr("load settings", err)
	}
	return st, nil
}

func (s *Service) UpdateSettings(ctx context.Context, winnersPerPeriod int, active bool, updatedBy string) (*models.RaffleSettings, error) {
	if winnersPerPeriod < 1 {
		return nil, &ValidationError{Field: "winnersPerPeriod", Message: "must be at least 1"}
	}
	st, err := s.store.UpdateRaffleSettings(ctx, winnersPerPeriod, active, updatedBy)
	if err != nil {
		return nil, persistErr("update settings", err)
	}
	s.settings.Invalidate()
	s.logger.Info("raffle settings updated", "winnersPerPeriod", st.WinnersPerPeriod, "active", st.Active, "by", updatedBy)
	return st, nil
}

// GetCurrentCycle returns the cycle for asOf's (year, month), creating it
// from the previous month of the same period when it does not exist yet.
func (s *Service) GetCurrentCycle(ctx context.Context, asOf time.Time) (*models.RaffleCycle, error) {
	return s.resolveCycle(ctx, asOf.Year(), int(asOf.Month())-1)
}

func (s *Service) resolveCycle(ctx context.Context, year, month int) (*models.RaffleCycle, error) {
	existing, err := s.store.GetCycle(ctx, year, month)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, database.ErrCycleNotFound) {
		return nil, persistErr("get cycle", err)
	}

	pos := locate(month)
	var draft *models.RaffleCycle
	if !pos.IsFirst {
		prev, err := s.store.GetCycle(ctx, year, month-1)
		if errors.Is(err, database.ErrCycleNotFound) {
			prev, err = s.store.LatestCycleBetween(ctx, year, pos.StartMonth, month-1)
		}
		switch {
		case err == nil:
			draft = inherit(prev, year, month, pos.IsLast)
		case errors.Is(err, database.ErrCycleNotFound):
		default:
			return nil, persistErr("get previous cycle", err)
		}
	}
	if draft == nil {
		draft, err = s.seed(ctx, year, month)
		if err != nil {
			return nil, err
		}
	}

	created, err := s.store.CreateCycle(ctx, *draft)
	if err != nil {
		if errors.Is(err, database.ErrCycleExists) {
			existing, err := s.store.GetCycle(ctx, year, month)
			if err != nil {
				return nil, persistErr("get cycle", err)
			}
			return existing, nil
		}
		return nil, persistErr("create cycle", err)
	}
	s.logger.Info("raffle cycle created", "cycle", created.ID, "year", year, "month", month,
		"eligible", len(created.EligibleUsers), "drawn", len(created.DrawnUsers))
	return created, nil
}

func (s *Service) seed(ctx context.Context, year, month int) (*models.RaffleCycle, error) {
	users, err := s.directory.ListActiveUsers(ctx)
	if err != nil {
		return nil, persistErr("list active users", err)
	}
	eligible := make([]string, 0, len(users))
	for _, u := range users {
		eligible = append(eligible, u.ID)
	}
	return &models.RaffleCycle{
		Year:          year,
		Month:         month,
		EligibleUsers: eligible,
		DrawnUsers:    []string{},
		PoolSize:      len(eligible),
	}, nil
}

// inherit carries prev's drawn list forward. The last month of a period
// starts with an empty eligible pool.
func inherit(prev *models.RaffleCycle, year, month int, last bool) *models.RaffleCycle {
	drawn := append([]string{}, prev.DrawnUsers...)
	eligible := []string{}
	if !last {
		eligible = remaining(prev.EligibleUsers, prev.DrawnUsers)
	}
	return &models.RaffleCycle{
		Year:          year,
		Month:         month,
		EligibleUsers: eligible,
		DrawnUsers:    drawn,
		PoolSize:      prev.PoolSize,
	}
}

// DrawWinners picks winnersPerPeriod members from the current cycle's
// remaining pool and records them in a single transaction.
func (s *Service) DrawWinners(ctx context.Context, asOf time.Time) (*DrawResult, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Active {
		return nil, ErrRaffleDisabled
	}

	cycle, err := s.GetCurrentCycle(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if cycle.IsCompleted {
		return nil, ErrCycleCompleted
	}

	n := settings.WinnersPerPeriod
	pool := remaining(cycle.EligibleUsers, cycle.DrawnUsers)
	if len(pool) < n {
		return nil, &InsufficientPoolError{Required: n, Available: len(pool)}
	}

	s.shuffle(pool)
	picked := pool[:n]

	drawnTotal := len(cycle.DrawnUsers) + n
	winnersCount := cycle.WinnersCount + n
	completed := winnersCount >= n*models.DrawsPerPeriod || drawnTotal >= cycle.PoolSize

	users, err := s.directory.GetUsersByIDs(ctx, picked)
	if err != nil {
		return nil, persistErr("load winners", err)
	}
	newWinners := orderUsers(picked, users)

	period := cycle.Period()
	drawID := uuid.NewString()
	winners := make([]models.RaffleWinner, 0, n)
	for i, userID := range picked {
		ref, err := payoutref.Generate(period)
		if err != nil {
			return nil, fmt.Errorf("generate payout ref: %w", err)
		}
		winners = append(winners, models.RaffleWinner{
			DrawID:        drawID,
			RafflePeriod:  period,
			UserID:        userID,
			Position:      i + 1,
			Amount:        s.payout,
			PaymentStatus: models.PaymentPending,
			PayoutRef:     ref,
		})
	}

	updated, inserted, err := s.store.RecordDraw(ctx, database.DrawRecord{
		CycleID:              cycle.ID,
		ExpectedWinnersCount: cycle.WinnersCount,
		WinnersCount:         winnersCount,
		IsCompleted:          completed,
		DrawingDate:          s.now(),
		Winners:              winners,
	})
	if err != nil {
		if errors.Is(err, database.ErrCycleChanged) {
			return nil, ErrCycleChanged
		}
		return nil, persistErr("record draw", err)
	}
	s.logger.Info("raffle draw recorded", "cycle", updated.ID, "draw", drawID,
		"winners", n, "winnersCount", updated.WinnersCount, "completed", updated.IsCompleted)

	s.announce(ctx, updated, newWinners, inserted)
	return &DrawResult{Cycle: updated, NewWinners: newWinners, Winners: inserted}, nil
}

func (s *Service) shuffle(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// orderUsers returns users in ids order. Ids missing from the directory get
// a bare record so every drawn id is reported.
func orderUsers(ids []string, users []models.User) []models.User {
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok {
			u = models.User{ID: id}
		}
		out = append(out, u)
	}
	return out
}

func (s *Service) announce(ctx context.Context, cycle *models.RaffleCycle, users []models.User, winners []models.RaffleWinner) {
	if s.notifier == nil {
		return
	}
	a := models.Announcement{Year: cycle.Year, Month: cycle.Month}
	for i, w := range winners {
		name := w.UserID
		if i < len(users) && users[i].Name != "" {
			name = users[i].Name
		}
		a.Winners = append(a.Winners, models.AnnouncedWinner{Name: name, Position: w.Position})
	}

	recipients, err := s.directory.ListActiveUsers(ctx)
	if err == nil {
		err = s.notifier.SendWinnersAnnouncement(ctx, recipients, a)
	}
	if err != nil {
		s.logger.Warn("winners announcement failed", "cycle", cycle.ID, "error", &NotificationError{Err: err})
	}
}

func (s *Service) GetWinners(ctx context.Context, year, month int) (*WinnersReport, error) {
	if month < 0 || month > 11 {
		return nil, &ValidationError{Field: "month", Message: "must be between 0 and 11"}
	}
	if year < 1 {
		return nil, &ValidationError{Field: "year", Message: "must be positive"}
	}
	report := &WinnersReport{Year: year, Month: month, Winners: []models.WinnerWithUser{}}

	cycle, err := s.store.GetCycle(ctx, year, month)
	if err != nil {
		if errors.Is(err, database.ErrCycleNotFound) {
			report.Message = fmt.Sprintf("no raffle cycle for %s %d", time.Month(month+1), year)
			return report, nil
		}
		return nil, persistErr("get cycle", err)
	}
	report.Cycle = cycle

	winners, err := s.store.ListWinners(ctx, models.RafflePeriod(year, month))
	if err != nil {
		return nil, persistErr("list winners", err)
	}
	report.Winners = winners
	if len(winners) == 0 {
		report.Message = fmt.Sprintf("no winners drawn for %s %d yet", time.Month(month+1), year)
	}
	return report, nil
}

func (s *Service) GetCurrentWinners(ctx context.Context, asOf time.Time) (*WinnersReport, error) {
	return s.GetWinners(ctx, asOf.Year(), int(asOf.Month())-1)
}

func (s *Service) UpdateWinnerPaymentStatus(ctx context.Context, winnerID int64, status models.PaymentStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "paymentStatus", Message: fmt.Sprintf("unknown status %q", status)}
	}
	var paidAt *time.Time
	if status == models.PaymentPaid {
		t := s.now()
		paidAt = &t
	}
	if err := s.store.UpdateWinnerPayment(ctx, winnerID, status, paidAt); err != nil {
		if errors.Is(err, database.ErrWinnerNotFound) {
			return ErrWinnerNotFound
		}
		return persistErr("update winner payment", err)
	}
	s.logger.Info("winner payment updated", "winner", winnerID, "status", status)
	return nil
}

// AddEligibleUsers appends the ids that are not yet members of the cycle and
// returns how many were added.
func (s *Service) AddEligibleUsers(ctx context.Context, cycleID int64, userIDs []string) (int, error) {
	cycle, err := s.store.GetCycleByID(ctx, cycleID)
	if err != nil {
		if errors.Is(err, database.ErrCycleNotFound) {
			return 0, ErrCycleNotFound
		}
		return 0, persistErr("get cycle", err)
	}

	seen := make(map[string]struct{}, len(cycle.EligibleUsers)+len(cycle.DrawnUsers))
	for _, id := range cycle.EligibleUsers {
		seen[id] = struct{}{}
	}
	for _, id := range cycle.DrawnUsers {
		seen[id] = struct{}{}
	}
	var novel []string
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		novel = append(novel, id)
	}
	if len(novel) == 0 {
		return 0, nil
	}

	added, err := s.store.AddCycleMembers(ctx, cycleID, novel)
	if err != nil {
		if errors.Is(err, database.ErrCycleNotFound) {
			return 0, ErrCycleNotFound
		}
		return 0, persistErr("add cycle members", err)
	}
	s.logger.Info("eligible users added", "cycle", cycleID, "added", added)
	return added, nil
}

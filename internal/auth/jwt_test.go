package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("secret", "chama-connect")
	token, err := m.IssueToken("u-1", "Wanjiru", RoleMember, time.Hour)
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, "Wanjiru", claims.Name)
	require.Equal(t, RoleMember, claims.Role)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := NewManager("secret", "chama-connect")
	token, err := m.IssueToken("u-1", "Wanjiru", RoleMember, -time.Minute)
	require.NoError(t, err)

	_, err = m.Parse(token)
	require.Error(t, err)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	token, err := NewManager("other", "chama-connect").IssueToken("u-1", "x", RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = NewManager("secret", "chama-connect").Parse(token)
	require.Error(t, err)

	token, err = NewManager("secret", "someone-else").IssueToken("u-1", "x", RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = NewManager("secret", "chama-connect").Parse(token)
	require.Error(t, err)
}

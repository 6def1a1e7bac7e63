package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xela07ax/review-workflow/internal/audit"
	"github.com/xela07ax/review-workflow/internal/domain"
)

func TestBuildUpdate(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	var d domain.RequestDelta
	d.Status = domain.Set(domain.StatusOnHold)
	d.PreviousStatus = domain.Set(domain.Ptr(domain.StatusInReview))
	d.HeldAt = domain.Set(domain.Ptr(now))
	d.Attorney = domain.Set(&domain.Principal{ID: "att-1"})
	d.TimeTracking.LegalHandoffAt = domain.Set[*time.Time](nil)

	query, args, err := buildUpdate("r-1", d.Changes())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(query, "UPDATE review_requests SET status = $1, previous_status = $2, attorney = $3, held_at = $4"))
	require.Contains(t, query, "tt_legal_handoff_at = $5")
	require.Contains(t, query, "updated_at = NOW()")
	require.True(t, strings.HasSuffix(query, "WHERE id = $6"))

	require.Len(t, args, 6)
	require.Equal(t, "OnHold", args[0])
	require.Equal(t, "InReview", *(args[1].(*string)))
	require.JSONEq(t, `{"id":"att-1"}`, string(args[2].([]byte)))
	require.Nil(t, args[4].(*time.Time))
	require.Equal(t, "r-1", args[5])
}

func TestBuildUpdate_NullPrincipalAndEmptyDelta(t *testing.T) {
	var d domain.RequestDelta
	d.Attorney = domain.Set[*domain.Principal](nil)

	_, args, err := buildUpdate("r-1", d.Changes())
	require.NoError(t, err)
	require.Nil(t, args[0])

	_, _, err = buildUpdate("r-1", nil)
	require.Error(t, err)
}

func TestBuildAuditInsert(t *testing.T) {
	events := []audit.Event{
		{ID: "e-1", RequestID: "r-1", Action: "submit_request"},
		{ID: "e-2", RequestID: "r-1", Action: "assign_attorney"},
	}

	query, vals := buildAuditInsert(events)
	require.Len(t, vals, 2*auditFields)
	require.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13), ($14,")
	require.True(t, strings.HasSuffix(query, "$26)"))
	require.Equal(t, "e-2", vals[auditFields])
}

func TestDecodePrincipal(t *testing.T) {
	p, err := decodePrincipal(nil)
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = decodePrincipal([]byte("null"))
	require.NoError(t, err)
	require.Nil(t, p)

	p, err = decodePrincipal([]byte(`{"id":"att-1","display_name":"Ann"}`))
	require.NoError(t, err)
	require.Equal(t, "Ann", p.DisplayName)

	_, err = decodePrincipal([]byte(`{`))
	require.Error(t, err)
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	stockdomain "github.com/jhoicas/stock-ledger/internal/domain/stock"
)

type fakeRefresher struct {
	recomputed []string
	all        int
	err        error
}

func (f *fakeRefresher) Recompute(_ context.Context, org string) (*stockdomain.Snapshot, error) {
	f.recomputed = append(f.recomputed, org)
	if f.err != nil {
		return nil, f.err
	}
	return &stockdomain.Snapshot{OrganizationID: org}, nil
}

func (f *fakeRefresher) RefreshAll(context.Context) error {
	f.all++
	return f.err
}

func task(t *testing.T, org string) *asynq.Task {
	t.Helper()
	tk, err := NewRefreshTask(org, time.Minute)
	require.NoError(t, err)
	return tk
}

func TestNewRefreshTask(t *testing.T) {
	tk := task(t, "org-1")
	assert.Equal(t, TaskStockRefresh, tk.Type())
	var p RefreshPayload
	require.NoError(t, json.Unmarshal(tk.Payload(), &p))
	assert.Equal(t, "org-1", p.OrganizationID)
}

func TestHandle_UnaOrganizacion(t *testing.T) {
	f := &fakeRefresher{}
	require.NoError(t, NewRefreshJob(f, nil).Handle(context.Background(), task(t, "org-1")))
	assert.Equal(t, []string{"org-1"}, f.recomputed)
	assert.Zero(t, f.all)
}

func TestHandle_TodasLasOrganizaciones(t *testing.T) {
	f := &fakeRefresher{}
	require.NoError(t, NewRefreshJob(f, nil).Handle(context.Background(), task(t, "")))
	assert.Equal(t, 1, f.all)
}

func TestHandle_PayloadInvalidoNoSeReintenta(t *testing.T) {
	f := &fakeRefresher{}
	err := NewRefreshJob(f, nil).Handle(context.Background(), asynq.NewTask(TaskStockRefresh, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandle_ClasificaReintentos(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
	}{
		{"store transitorio", &domain.StoreError{Op: "scan", Err: errors.New("conn reset")}, true},
		{"store permanente", &domain.StoreError{Op: "scan", Err: errors.New("tipo"), Permanent: true}, false},
		{"desbordamiento", &domain.OverflowError{ProductID: "p1"}, false},
		{"timeout", context.DeadlineExceeded, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeRefresher{err: tc.err}
			err := NewRefreshJob(f, nil).Handle(context.Background(), task(t, "org-1"))
			require.Error(t, err)
			assert.Equal(t, !tc.retry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

package health

import (
	"context"
	"errors"
	"testing"
)

type stubPinger struct{ err error }

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

type stubChecker struct{ err error }

func (s *stubChecker) HealthCheck(_ context.Context) error { return s.err }

func TestCheck(t *testing.T) {
	boom := errors.New("down")
	tests := []struct {
		name       string
		storeErr   error
		provider   ProviderChecker
		wantStatus Status
		wantChecks map[string]CheckResult
	}{
		{
			name:       "all healthy",
			provider:   &stubChecker{},
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"store": CheckOK, "embedding": CheckOK},
		},
		{
			name:       "store down",
			storeErr:   boom,
			provider:   &stubChecker{},
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"store": CheckError, "embedding": CheckOK},
		},
		{
			name:       "provider down",
			provider:   &stubChecker{err: boom},
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"store": CheckOK, "embedding": CheckError},
		},
		{
			name:       "nil provider skipped",
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"store": CheckOK},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&stubPinger{err: tt.storeErr}, tt.provider)
			report := svc.Check(context.Background())

			if report.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", report.Status, tt.wantStatus)
			}
			if len(report.Checks) != len(tt.wantChecks) {
				t.Fatalf("checks = %v, want %v", report.Checks, tt.wantChecks)
			}
			for k, want := range tt.wantChecks {
				if got := report.Checks[k]; got != want {
					t.Errorf("check %s = %s, want %s", k, got, want)
				}
			}
		})
	}
}

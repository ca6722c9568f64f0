package authcore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/craftsec/authcore/internal"
)

// verifyBackupCode races one digest comparison per unused candidate code and
// consumes at most one row.
//
// The comparisons are pure CPU work with no side effects, so losers are safe
// to abandon: the race context is cancelled as soon as a winner's row is
// committed. The commit itself goes through the store's conditional update,
// which lets exactly one caller flip a given row to used even when separate
// processes race on the same code.
func (e *Engine) verifyBackupCode(ctx context.Context, principalID, code string) (bool, error) {
	canonical := internal.CanonicalizeBackupCode(code)
	if canonical == "" {
		return false, nil
	}

	candidates, err := e.principals.UnusedBackupCodes(ctx, principalID, e.config.MFA.BackupCodeCandidates)
	if err != nil {
		e.metricInc(MetricStorageUnavailable)
		return false, errors.Join(ErrStorageUnavailable, err)
	}
	if len(candidates) == 0 {
		e.metricInc(MetricBackupCodeFailed)
		return false, nil
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	matches := make(chan BackupCodeRecord, len(candidates))
	var wg sync.WaitGroup
	for _, rec := range candidates {
		wg.Add(1)
		go func(rec BackupCodeRecord) {
			defer wg.Done()
			if err := e.gate.Acquire(raceCtx); err != nil {
				return
			}
			defer e.gate.Release()
			if raceCtx.Err() != nil {
				return
			}
			if e.hasher.Verify(canonical, rec.CodeHash) {
				select {
				case matches <- rec:
				case <-raceCtx.Done():
				}
			}
		}(rec)
	}
	go func() {
		wg.Wait()
		close(matches)
	}()

	origin := clientOriginFromContext(ctx)
	for rec := range matches {
		consumed, err := e.principals.ConsumeBackupCode(ctx, rec.ID, origin, time.Now().UTC())
		if err != nil {
			e.metricInc(MetricStorageUnavailable)
			return false, errors.Join(ErrStorageUnavailable, err)
		}
		if !consumed {
			// Another caller won this row. The code is spent.
			continue
		}

		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, principalID, "", nil, nil)
		return true, nil
	}

	e.metricInc(MetricBackupCodeFailed)
	e.emitAudit(ctx, auditEventBackupCodeFailed, false, principalID, "", ErrMFACodeInvalid, nil)
	return false, nil
}

// Package write sequences a write into a target: existence probe, asset
// policy, data policy, per-record inserts and aggregation into a Result.
//
// Status codes:
//
//	200  nothing left to write
//	201  every record written
//	204  target exists and on_asset_conflict=ignore
//	207  some records failed
//	400  every record failed, or a record lacks a conflict key field
//	404  target missing and creation not requested
//	409  target exists with on_asset_conflict=fail, or data conflicts with on_data_conflict=fail
//
// Connection and probe failures and unimplemented policies are returned as
// errors instead; ResultFromError renders them as envelopes.
package write

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/inout/errors"
	"github.com/teranos/inout/logger"
	"github.com/teranos/inout/policy"
	"github.com/teranos/inout/record"
	"github.com/teranos/inout/resolve"
)

// ConflictPreviewLimit caps the conflicts echoed back by a failed write.
const ConflictPreviewLimit = 5

// Request describes one write.
type Request struct {
	Records         []record.Record
	AssetPolicy     policy.Policy
	DataPolicy      policy.Policy
	ConflictKey     resolve.Key // empty: each record's own fields
	CreateIfMissing bool
}

// Orchestrator runs writes. It holds no per-write state.
type Orchestrator struct {
	log   *zap.SugaredLogger
	newID func() string
}

// New creates an orchestrator that logs through log (nil: no logging).
func New(log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		log:   logger.ComponentLogger(log, "write"),
		newID: uuid.NewString,
	}
}

// Write runs req against target.
func (o *Orchestrator) Write(ctx context.Context, target Target, req Request) (Result, error) {
	ctx = logger.WithWriteID(ctx, o.newID())
	log := logger.FromContext(ctx, o.log).With(logger.FieldTarget, target.Name())
	start := time.Now()

	if err := validateAssetPolicy(req.AssetPolicy); err != nil {
		return Result{}, err
	}
	if err := resolve.Validate(req.DataPolicy); err != nil {
		return Result{}, err
	}

	exists, err := target.Exists(ctx)
	if err != nil {
		log.Errorw("Could not read target information", logger.FieldError, err)
		return Result{}, errors.Wrapf(err, "check %s", target.Name())
	}

	created := false
	if !exists {
		log.Infow("Target does not exist", "create_if_missing", req.CreateIfMissing)
		if !req.CreateIfMissing {
			return Result{
				StatusCode: http.StatusNotFound,
				Msg: fmt.Sprintf("Could not find %s. If you wish to create it, set create_if_missing",
					target.Name()),
			}, nil
		}
		if len(req.Records) == 0 {
			return Result{StatusCode: http.StatusOK, Msg: fmt.Sprintf("No %s to write", target.Noun())}, nil
		}
		if err := o.create(ctx, log, target, req.Records); err != nil {
			return Result{}, err
		}
		created = true
	} else {
		switch req.AssetPolicy {
		case policy.Fail:
			return Result{
				StatusCode: http.StatusConflict,
				Msg: fmt.Sprintf("%s exists and on_asset_conflict=%s. If you wish to write into it, change the asset conflict policy",
					target.Name(), req.AssetPolicy),
			}, nil
		case policy.Ignore:
			return Result{
				StatusCode: http.StatusNoContent,
				Msg:        fmt.Sprintf("%s exists but request dropped since on_asset_conflict=%s", target.Name(), req.AssetPolicy),
			}, nil
		}
	}

	res, err := o.writeRecords(ctx, log, target, req, created)
	if created && (err != nil || res.StatusCode >= http.StatusBadRequest) {
		if dropErr := o.rollback(ctx, log, target); dropErr != nil {
			if err != nil {
				return Result{}, errors.WithSecondaryError(err, dropErr)
			}
			res.Msg += fmt.Sprintf(" (could not remove created %s: %v)", target.Name(), dropErr)
		} else if err == nil {
			res.Msg += fmt.Sprintf(" (created %s was removed)", target.Name())
		}
	}
	if err != nil {
		return Result{}, err
	}

	log.Infow("Write finished",
		logger.FieldStatusCode, res.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return res, nil
}

func validateAssetPolicy(p policy.Policy) error {
	if !p.Valid() {
		return errors.NewInvalidRequestError("invalid asset conflict policy %d", uint8(p))
	}
	if p == policy.Replace {
		// Whether replace means updating the target's metadata in place or
		// dropping and recreating it has not been decided.
		return errors.WithHint(
			errors.NewUnsupportedError("on_asset_conflict=%s is not implemented", p),
			"use append, ignore or fail; replacing an existing target needs its semantics settled first",
		)
	}
	return nil
}

func (o *Orchestrator) create(ctx context.Context, log *zap.SugaredLogger, target Target, records []record.Record) error {
	creator, ok := target.(Creator)
	if !ok {
		return errors.WithHint(
			errors.NewUnsupportedError("creating %s is not supported", target.Name()),
			"create it manually and try again",
		)
	}

	schema := record.InferSchema(records)
	log.Infow("Creating target", logger.FieldCount, len(schema))
	if err := creator.Create(ctx, schema); err != nil {
		return errors.Wrapf(err, "create %s", target.Name())
	}
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, log *zap.SugaredLogger, target Target) error {
	log.Warnw("Removing target created by aborted write")
	if err := target.(Creator).Drop(ctx); err != nil {
		log.Errorw("Failed to remove created target", logger.FieldError, err)
		return errors.Wrapf(err, "drop %s", target.Name())
	}
	return nil
}

func (o *Orchestrator) writeRecords(ctx context.Context, log *zap.SugaredLogger, target Target, req Request, created bool) (Result, error) {
	key := req.ConflictKey

	// A target created by this write is empty; there is nothing to probe.
	var probe []record.Record
	if req.DataPolicy != policy.Append && !created {
		fields := resolve.ProbeFields(req.Records, key)
		log.Infow("Checking records for conflicts", logger.FieldKey, fields)
		var err error
		probe, err = target.Probe(ctx, fields)
		if err != nil {
			log.Errorw("Could not read existing records", logger.FieldError, err)
			return Result{}, errors.Wrapf(err, "probe %s", target.Name())
		}
		log.Debugw("Probed existing records", logger.FieldCount, len(probe))
	}

	resolution, err := resolve.Resolve(probe, req.Records, key, req.DataPolicy)
	if err != nil {
		var missing *resolve.MissingKeyError
		if errors.As(err, &missing) {
			idx := missing.Index
			return Result{
				StatusCode: http.StatusBadRequest,
				Msg:        err.Error(),
				Data:       &Data{Noun: target.Noun(), ConflictKey: key, InvalidIndex: &idx},
			}, nil
		}
		return Result{}, err
	}

	noun := target.Noun()
	if resolution.Decision == resolve.DecisionAbort {
		log.Errorw("Exiting since on_data_conflict=fail", logger.FieldConflicts, len(resolution.Conflicts))
		preview := resolution.Conflicts
		if len(preview) > ConflictPreviewLimit {
			preview = preview[:ConflictPreviewLimit]
		}
		return Result{
			StatusCode: http.StatusConflict,
			Msg: fmt.Sprintf("Found %d %s that conflict on %s",
				len(resolution.Conflicts), noun, describeKey(key)),
			Data: &Data{
				Noun:         noun,
				ConflictKey:  key,
				NumConflicts: len(resolution.Conflicts),
				Conflicts:    preview,
			},
		}, nil
	}

	data := &Data{Noun: noun}
	if req.DataPolicy == policy.Ignore && len(resolution.Conflicts) > 0 {
		log.Infow("Ignoring conflicting records", logger.FieldConflicts, len(resolution.Conflicts))
		data.Ignored = resolution.Conflicts
	}

	total := len(resolution.Write)
	if total == 0 {
		return Result{StatusCode: http.StatusOK, Msg: fmt.Sprintf("No %s to write", noun), Data: data.orNil()}, nil
	}

	log.Infow("Writing records", logger.FieldCount, total)
	for n, entry := range resolution.Write {
		if err := target.Insert(ctx, entry.Record); err != nil {
			log.Errorw(fmt.Sprintf("Failed to write record %d/%d", n+1, total),
				logger.FieldIndex, entry.Index,
				logger.FieldError, err)
			data.Reasons = append(data.Reasons, Failure{
				Index:      entry.Index,
				StatusCode: errors.StatusCode(err),
				Msg:        err.Error(),
				Record:     entry.Record,
			})
		}
	}

	failed := len(data.Reasons)
	log.Infow("Wrote records", logger.FieldWritten, total-failed, logger.FieldFailed, failed)

	res := Result{Data: data.orNil()}
	switch {
	case failed == 0:
		res.StatusCode = http.StatusCreated
		res.Msg = fmt.Sprintf("Successfully wrote %d %s to %s", total, noun, target.Name())
	case failed == total:
		res.StatusCode = http.StatusBadRequest
		res.Msg = fmt.Sprintf("None of the %s were successfully written due to write errors", noun)
	default:
		res.StatusCode = http.StatusMultiStatus
		res.Msg = fmt.Sprintf("%d of %d %s failed to write", failed, total, noun)
	}
	return res, nil
}

func describeKey(key resolve.Key) string {
	if len(key) == 0 {
		return "all of their fields"
	}
	return fmt.Sprint([]string(key))
}

func (d *Data) orNil() *Data {
	if len(d.Reasons) == 0 && len(d.Ignored) == 0 {
		return nil
	}
	return d
}

package reform

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-go-golems/recast/pkg/placeholder"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Event is one (timestamp, record) pair of the stream.
type Event struct {
	Time   time.Time
	Record map[string]any
}

// Stats is a snapshot of the reformer's event counters.
type Stats struct {
	Processed int64
	Emitted   int64
	Dropped   int64
}

// Reformer applies a declared template to every record of a stream. It is
// built once at configuration time and is read-only afterwards; it is safe
// for concurrent use across event-processing goroutines.
type Reformer struct {
	cfg      Config
	strategy placeholder.Strategy
	builder  *placeholder.Builder
	tpl      any

	processed atomic.Int64
	emitted   atomic.Int64
	dropped   atomic.Int64
}

func New(cfg Config, record map[string]any) (*Reformer, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid transform configuration")
	}

	var strategy placeholder.Strategy
	if cfg.EnableRuby {
		strategy = &placeholder.SandboxStrategy{
			AutoTypecast: cfg.AutoTypecast,
			EvalTimeout:  cfg.EvalTimeout,
		}
	} else {
		strategy = &placeholder.SafeStrategy{AutoTypecast: cfg.AutoTypecast}
	}

	tpl, err := strategy.Preprocess(normalizeTemplate(record))
	if err != nil {
		return nil, errors.Wrap(err, "preprocess template")
	}

	builder, err := placeholder.NewBuilder(strategy)
	if err != nil {
		return nil, err
	}

	return &Reformer{
		cfg:      cfg,
		strategy: strategy,
		builder:  builder,
		tpl:      tpl,
	}, nil
}

// ReformEvent transforms one event. The input record is never mutated: the
// output starts from an empty record in renew mode, otherwise from a shallow
// copy.
func (r *Reformer) ReformEvent(tag string, t time.Time, record map[string]any) (time.Time, map[string]any, error) {
	ctx := r.builder.Build(tag, t, record)

	var newRecord map[string]any
	if r.cfg.RenewRecord {
		newRecord = make(map[string]any, len(r.cfg.KeepKeys))
		for _, k := range r.cfg.KeepKeys {
			if v, ok := record[k]; ok {
				newRecord[k] = v
			}
		}
	} else {
		newRecord = make(map[string]any, len(record))
		for k, v := range record {
			newRecord[k] = v
		}
	}

	expanded, err := r.strategy.Expand(r.tpl, ctx, false)
	if err != nil {
		return t, nil, errors.Wrap(err, "expand template")
	}
	fields, ok := expanded.(map[string]any)
	if !ok {
		return t, nil, errors.Errorf("expanded template is %T, expected an object", expanded)
	}
	// Template fields win over kept/copied fields.
	for k, v := range fields {
		newRecord[k] = v
	}

	outTime := t
	if r.cfg.RenewTimeKey != "" {
		if v, ok := newRecord[r.cfg.RenewTimeKey]; ok {
			ts, err := toEventTime(v)
			if err != nil {
				log.Warn().Err(err).Str("key", r.cfg.RenewTimeKey).
					Msg("ignoring renew_time_key value")
			} else {
				outTime = ts
			}
		}
	}

	// Removal is the final word.
	for _, k := range r.cfg.RemoveKeys {
		delete(newRecord, k)
	}

	return outTime, newRecord, nil
}

// ReformBatch transforms an ordered batch of events sharing one routing tag.
// Event order is preserved; an event whose reform fails is dropped with a
// diagnostic and the rest of the batch continues.
func (r *Reformer) ReformBatch(tag string, events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		r.processed.Add(1)
		t, rec, err := r.ReformEvent(tag, ev.Time, ev.Record)
		if err != nil {
			r.dropped.Add(1)
			log.Warn().Err(err).Str("tag", tag).Interface("record", ev.Record).
				Msg("dropping event: reform failed")
			continue
		}
		r.emitted.Add(1)
		out = append(out, Event{Time: t, Record: rec})
	}
	return out
}

func (r *Reformer) Stats() Stats {
	return Stats{
		Processed: r.processed.Load(),
		Emitted:   r.emitted.Load(),
		Dropped:   r.dropped.Load(),
	}
}

// toEventTime reinterprets a record field value as an event timestamp.
// Integers are Unix epoch seconds; strings fall back to best-effort parsing.
func toEventTime(v any) (time.Time, error) {
	switch vv := v.(type) {
	case time.Time:
		return vv, nil
	case int:
		return time.Unix(int64(vv), 0), nil
	case int64:
		return time.Unix(vv, 0), nil
	case float64:
		return time.Unix(int64(vv), 0), nil
	case string:
		s := strings.TrimSpace(vv)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(i, 0), nil
		}
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "parse time value %q", vv)
		}
		return t, nil
	default:
		return time.Time{}, errors.Errorf("cannot interpret %T as an event time", v)
	}
}

package synth

import (
	"context"

	"funcsmith/internal/funcdef"
	"funcsmith/internal/logger"
	"funcsmith/internal/prompt"
)

// loopState is the explicit state of one repair loop run.
type loopState int

const (
	stateSynthesizing loopState = iota
	stateValidating
	stateRetrying
	stateDone
	stateExhausted
)

// RepairLoop drives synthesize → validate across a bounded number of
// attempts. Attempt 0 uses the synthesis prompt; later attempts use a repair
// prompt seeded with the last candidate and its error. An oracle failure
// spends an attempt like a validation failure does.
type RepairLoop struct {
	synth      *Synthesizer
	maxRepairs int
	log        *logger.LogEntry
}

// NewRepairLoop builds a loop allowing one synthesis call plus up to
// maxRepairs repair calls.
func NewRepairLoop(synth *Synthesizer, maxRepairs int) *RepairLoop {
	if maxRepairs < 0 {
		maxRepairs = 0
	}
	return &RepairLoop{synth: synth, maxRepairs: maxRepairs, log: logger.Named("repair-loop")}
}

// Run executes the loop for spec and returns a validated definition. The
// result is not persisted here; storing it is the caller's explicit step.
// On exhaustion the error is an *ExhaustedError carrying the final failure.
func (l *RepairLoop) Run(ctx context.Context, spec funcdef.Spec, capabilityDoc string) (funcdef.Definition, error) {
	var (
		state     = stateSynthesizing
		attempt   int
		candidate string
		lastCode  string
		lastErr   error
	)

	for {
		switch state {
		case stateSynthesizing:
			if err := ctx.Err(); err != nil {
				return funcdef.Definition{}, &ExhaustedError{Attempts: attempt, LastErr: err}
			}
			text := prompt.Synthesis(spec, capabilityDoc)
			if attempt > 0 && lastCode != "" {
				text = prompt.Repair(spec, capabilityDoc, lastCode, lastErr.Error())
			}
			code, err := l.synth.Synthesize(ctx, text)
			if err != nil {
				lastErr = err
				l.log.WithField("attempt", attempt).Warnf("oracle call failed: %v", err)
				state = stateRetrying
				continue
			}
			candidate = code
			state = stateValidating

		case stateValidating:
			if err := Validate(candidate, spec.Name); err != nil {
				lastCode = candidate
				lastErr = err
				l.log.WithField("attempt", attempt).Warnf("candidate rejected: %v", err)
				state = stateRetrying
				continue
			}
			state = stateDone

		case stateRetrying:
			attempt++
			if attempt > l.maxRepairs {
				state = stateExhausted
				continue
			}
			state = stateSynthesizing

		case stateDone:
			l.log.WithField("attempts", attempt+1).Infof("synthesized %s", spec.Name)
			return funcdef.Definition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
				Code:        candidate,
			}, nil

		case stateExhausted:
			return funcdef.Definition{}, &ExhaustedError{Attempts: attempt, LastErr: lastErr}
		}
	}
}

// Package advisor turns a profile or tile aggregate into planning
// recommendations through an LLM.
package advisor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sells-group/landuse-cli/internal/monitoring"
	"github.com/sells-group/landuse-cli/internal/tracing"
)

// ErrCompletion marks a provider or transport failure. Match with errors.Is.
var ErrCompletion = errors.New("advisor completion failed")

// CompletionError carries the provider failure behind ErrCompletion.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return "advisor: " + e.Provider + " completion: " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCompletion.
func (e *CompletionError) Is(target error) bool { return target == ErrCompletion }

// Completer sends a prompt to a model and returns its text reply.
type Completer interface {
	Provider() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithDefaultUserType sets the persona used when Advise gets an empty one.
func WithDefaultUserType(userType string) Option {
	return func(a *Advisor) {
		if strings.TrimSpace(userType) != "" {
			a.userType = userType
		}
	}
}

// WithIDFunc overrides advisory ID generation.
func WithIDFunc(fn func() string) Option {
	return func(a *Advisor) {
		a.newID = fn
	}
}

// WithLogger overrides the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) Option {
	return func(a *Advisor) {
		a.log = l
	}
}

// Advisor builds prompts, calls a Completer and parses the reply.
type Advisor struct {
	completer Completer
	userType  string
	newID     func() string
	log       *zap.Logger
}

// New creates an Advisor backed by c.
func New(c Completer, opts ...Option) *Advisor {
	a := &Advisor{
		completer: c,
		userType:  DefaultUserType,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = zap.L()
	}
	a.log = a.log.With(zap.String("component", "advisor"), zap.String("provider", c.Provider()))
	return a
}

// Advise asks the model for recommendations on data. Provider failures match
// ErrCompletion; unusable replies match ErrInvalidResponseFormat.
func (a *Advisor) Advise(ctx context.Context, data any, userType string) (*Advisory, error) {
	if strings.TrimSpace(userType) == "" {
		userType = a.userType
	}
	prompt, err := BuildPrompt(data, userType)
	if err != nil {
		return nil, err
	}

	text, err := a.complete(ctx, prompt)
	if err != nil {
		a.log.Warn("completion failed", zap.Error(err))
		return nil, &CompletionError{Provider: a.completer.Provider(), Err: err}
	}

	adv, err := Parse(text)
	if err != nil {
		a.log.Warn("unparseable advisory reply", zap.Int("reply_len", len(text)), zap.Error(err))
		return nil, err
	}
	adv.ID = a.newID()
	adv.Provider = a.completer.Provider()
	adv.UserType = userType

	a.log.Info("advisory generated",
		zap.String("advisory_id", adv.ID),
		zap.String("user_type", userType),
		zap.Int("recommendations", len(adv.Recommendations)),
	)
	return adv, nil
}

func (a *Advisor) complete(ctx context.Context, prompt string) (text string, err error) {
	provider := a.completer.Provider()
	ctx, span := tracing.Start(ctx, "advisor.complete")
	span.SetAttributes(attribute.String("provider", provider))
	start := time.Now()
	defer func() {
		monitoring.RecordLLMRequest(provider, time.Since(start), err == nil)
		tracing.End(span, err)
	}()

	text, err = a.completer.Complete(ctx, prompt)
	if err != nil {
		return "", eris.Wrap(err, "advisor: complete")
	}
	return text, nil
}

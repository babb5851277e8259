package portal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

// Strategy is one named technique for locating an element. A cascade is an
// ordered list of strategies tried until one yields a usable match; only
// exhausting the whole list is an error. This is how the engine survives
// markup drift without hardcoding a single selector.
type Strategy struct {
	Name  string
	Query browser.Query
}

// css is a shorthand strategy constructor.
func css(name, sel string) Strategy {
	return Strategy{Name: name, Query: browser.ByCSS(sel)}
}

// xpath is a shorthand strategy constructor.
func xpath(name, expr string) Strategy {
	return Strategy{Name: name, Query: browser.ByXPath(expr)}
}

// ResolveFirst returns the first visible, enabled element matched by the
// cascade. Each strategy gets an independent perTry budget; individual
// misses are not errors. Exhaustion yields ErrControlNotFound tagged with
// the cascade name.
func ResolveFirst(ctx context.Context, page browser.Page, cascade []Strategy, perTry time.Duration, log *zap.Logger) (browser.Element, error) {
	for _, s := range cascade {
		el, ok, err := page.Find(ctx, s.Query, perTry)
		if err != nil {
			// A strategy-level driver error is not fatal to the cascade
			// either; stale queries against rerendering views fail often.
			log.Debug("selector strategy errored",
				zap.String("strategy", s.Name), zap.Error(err))
			continue
		}
		if ok {
			log.Debug("selector strategy matched", zap.String("strategy", s.Name))
			return el, nil
		}
	}
	return nil, fmt.Errorf("cascade exhausted after %d strategies: %w", len(cascade), ErrControlNotFound)
}

// ResolveAll returns the matches of the first strategy that yields any,
// together with the strategy that produced them. Used for row discovery
// where a whole candidate set is wanted, in descending specificity.
func ResolveAll(ctx context.Context, page browser.Page, cascade []Strategy, log *zap.Logger) ([]browser.Element, Strategy, error) {
	for _, s := range cascade {
		elements, err := page.FindAll(ctx, s.Query)
		if err != nil {
			log.Debug("selector strategy errored",
				zap.String("strategy", s.Name), zap.Error(err))
			continue
		}
		if len(elements) > 0 {
			log.Debug("selector strategy matched",
				zap.String("strategy", s.Name), zap.Int("count", len(elements)))
			return elements, s, nil
		}
	}
	return nil, Strategy{}, fmt.Errorf("cascade exhausted after %d strategies: %w", len(cascade), ErrControlNotFound)
}

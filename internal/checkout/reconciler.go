// Package checkout finalizes a purchase after the payment provider redirects
// the learner back to the course page.
package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	// SuccessParam is the query parameter the payment provider appends on return.
	SuccessParam = "success"
	// successValue is the only value that triggers completion.
	successValue = "1"
)

var (
	errMissingCompleter = errors.New("checkout: completer is required")
	errMissingNavigator = errors.New("checkout: navigator is required")
)

// Outcome describes what the reconciler did with a location.
type Outcome string

const (
	// OutcomeSkipped means the location carried no success marker.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeCompleted means the purchase was confirmed and the browser sent to the chapters view.
	OutcomeCompleted Outcome = "completed"
	// OutcomeReloaded means completion failed and the current page was reloaded.
	OutcomeReloaded Outcome = "reloaded"
)

// Completer confirms a purchase with the backend.
type Completer interface {
	CompletePurchase(ctx context.Context, courseID, userID string) error
}

// Navigator applies browser-level effects.
type Navigator interface {
	// ReplaceURL swaps the visible URL without adding a history entry.
	ReplaceURL(location *url.URL)
	// Assign performs a full navigation that discards client state.
	Assign(location *url.URL)
	// Reload performs a full reload of the current page.
	Reload()
}

// ReconcilerConfig describes the dependencies of a Reconciler.
type ReconcilerConfig struct {
	Completer Completer
	Navigator Navigator
	Logger    *zap.Logger
}

// Reconciler turns a checkout-return location into exactly one completion
// call followed by a full navigation. It keeps no state between calls and
// does not deduplicate: the completion endpoint is idempotent.
type Reconciler struct {
	completer Completer
	navigator Navigator
	logger    *zap.Logger
}

// NewReconciler validates the configuration and constructs a Reconciler.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Completer == nil {
		return nil, errMissingCompleter
	}
	if cfg.Navigator == nil {
		return nil, errMissingNavigator
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		completer: cfg.Completer,
		navigator: cfg.Navigator,
		logger:    logger,
	}, nil
}

// Reconcile inspects location and, when it carries success=1, completes the
// purchase. Any failure reloads the current page instead of retrying, so the
// next page load re-evaluates access from scratch.
func (r *Reconciler) Reconcile(ctx context.Context, location *url.URL, courseID, userID string) Outcome {
	if !IsCheckoutReturn(location) {
		return OutcomeSkipped
	}

	if err := r.completer.CompletePurchase(ctx, courseID, userID); err != nil {
		r.logger.Warn("purchase completion failed; reloading",
			zap.String("course_id", courseID),
			zap.String("user_id", userID),
			zap.Error(err))
		r.navigator.Reload()
		return OutcomeReloaded
	}

	r.navigator.ReplaceURL(StripSuccessParam(location))
	r.navigator.Assign(ChaptersLocation(location, courseID))
	r.logger.Info("purchase completed; opening course chapters",
		zap.String("course_id", courseID),
		zap.String("user_id", userID))
	return OutcomeCompleted
}

// IsCheckoutReturn reports whether location carries the literal success marker.
func IsCheckoutReturn(location *url.URL) bool {
	if location == nil {
		return false
	}
	return location.Query().Get(SuccessParam) == successValue
}

// StripSuccessParam returns a copy of location without the success marker.
func StripSuccessParam(location *url.URL) *url.URL {
	stripped := *location
	query := stripped.Query()
	query.Del(SuccessParam)
	stripped.RawQuery = query.Encode()
	return &stripped
}

// ChaptersLocation returns the unlocked chapter listing of a course on the
// same origin as location.
func ChaptersLocation(location *url.URL, courseID string) *url.URL {
	return courseURL(&url.URL{Scheme: location.Scheme, Host: location.Host}, courseID, "chapters")
}

// courseURL appends /courses/{courseID}/{suffix...} to base. The course id
// stays a single segment even when it contains a slash.
func courseURL(base *url.URL, courseID string, suffix ...string) *url.URL {
	segment := strings.TrimSpace(courseID)
	tail := strings.Join(suffix, "/")
	prefix := strings.TrimRight(base.Path, "/")
	rawPrefix := strings.TrimRight(base.EscapedPath(), "/")

	joined := *base
	joined.RawQuery = ""
	joined.Fragment = ""
	joined.Path = prefix + "/courses/" + segment + "/" + tail
	joined.RawPath = rawPrefix + "/courses/" + url.PathEscape(segment) + "/" + tail
	return &joined
}

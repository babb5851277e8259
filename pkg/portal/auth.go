package portal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/browser"
)

// usernameCascade locates the identity provider's username field. The
// provider ships no stable markup contract, so the list runs from the
// obvious ids down to generic text inputs.
var usernameCascade = []Strategy{
	css("by id", "#username"),
	css("by name", `input[name="username"]`),
	css("text input", `input[type="text"]`),
	css("email input", `input[type="email"]`),
	css("placeholder Benutzer", `input[placeholder*="Benutzer"]`),
	css("placeholder User", `input[placeholder*="User"]`),
	css("placeholder Email", `input[placeholder*="Email"]`),
	xpath("generic text or email input", `//input[@type="text" or @type="email"]`),
}

// passwordCascade locates the password field analogously.
var passwordCascade = []Strategy{
	css("by id", "#password"),
	css("by name", `input[name="password"]`),
	css("password input", `input[type="password"]`),
	xpath("generic password input", `//input[@type="password"]`),
}

// loginFailurePaths are URL fragments that mean the identity provider is
// still (re-)showing the login flow.
var loginFailurePaths = []string{
	"/login-actions/authenticate",
	"/auth/realms/gls/login",
}

// loginFailurePhrases in the page text mean the portal rejected the
// credentials. Checked case-sensitively, in the locales the provider uses.
var loginFailurePhrases = []string{
	"Invalid username or password",
	"Ungültiger Benutzername oder Passwort",
	"Account is disabled",
	"error",
}

// errorContainerSelectors are scanned after an ambiguous failure, purely
// for diagnostics; whatever they contain does not change the outcome.
var errorContainerSelectors = []string{
	".alert-error", ".error", ".alert-danger", ".text-danger",
	`[class*="error"]`, "#input-error", ".kc-feedback-text",
	".login-error", ".auth-error",
}

// Login drives the portal's authentication flow. A rejected credential is
// a normal false, never an error; errors are reserved for session-level
// failures (no browser, navigation dead before the login host). On error
// the session is torn down and a fresh Login is required.
func (e *Engine) Login(ctx context.Context, creds Credentials) (bool, error) {
	page, err := e.session.Page()
	if err != nil {
		page, err = e.session.Open(ctx)
		if err != nil {
			e.report(StepFailed, "Browser-Sitzung konnte nicht geöffnet werden", 0)
			return false, stepErr(StepConnecting, err)
		}
	}

	e.report(StepConnecting, "Verbindung zum Portal...", 10)
	e.session.To(StateAuthenticating)

	if err := page.Navigate(ctx, e.cfg.AuthURL); err != nil {
		e.fail(ctx, "Portal nicht erreichbar")
		return false, stepErr(StepConnecting, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}

	e.report(StepLoggingIn, "Warte auf Weiterleitung zur Login-Seite...", 20)

	// The portal redirects to its identity provider. Not arriving there in
	// time is a login failure, not a crash.
	if err := page.WaitLocationContains(ctx, e.cfg.LoginHost, e.cfg.RedirectTimeout); err != nil {
		e.log.Warn("no redirect to login host", zap.String("host", e.cfg.LoginHost), zap.Error(err))
		e.report(StepFailed, "Keine Weiterleitung zur Login-Seite", 0)
		return false, nil
	}
	if err := page.Sleep(ctx, 2*e.cfg.SettleShort); err != nil {
		e.fail(ctx, "Sitzung abgebrochen")
		return false, stepErr(StepLoggingIn, err)
	}

	e.report(StepLoggingIn, "Suche Anmeldefelder...", 30)

	usernameField, err := ResolveFirst(ctx, page, usernameCascade, e.cfg.ElementTimeout, e.log)
	if err != nil {
		e.fail(ctx, "Benutzername-Feld nicht gefunden")
		return false, stepErr(StepLoggingIn, err)
	}
	if err := enterAndSubmit(ctx, usernameField, creds.Username); err != nil {
		e.fail(ctx, "Eingabe fehlgeschlagen")
		return false, stepErr(StepLoggingIn, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}
	if err := page.Sleep(ctx, e.cfg.SettleShort); err != nil {
		e.fail(ctx, "Sitzung abgebrochen")
		return false, stepErr(StepLoggingIn, err)
	}

	e.report(StepLoggingIn, "Gebe Passwort ein...", 50)

	passwordField, err := ResolveFirst(ctx, page, passwordCascade, e.cfg.ElementTimeout, e.log)
	if err != nil {
		e.fail(ctx, "Passwort-Feld nicht gefunden")
		return false, stepErr(StepLoggingIn, err)
	}
	if err := enterAndSubmit(ctx, passwordField, creds.Password); err != nil {
		e.fail(ctx, "Eingabe fehlgeschlagen")
		return false, stepErr(StepLoggingIn, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}

	e.report(StepLoggingIn, "Warte auf Login-Ergebnis...", 70)
	if err := page.Sleep(ctx, e.cfg.SettleShort/2); err != nil {
		e.fail(ctx, "Sitzung abgebrochen")
		return false, stepErr(StepLoggingIn, err)
	}

	url, err := page.Location(ctx)
	if err != nil {
		e.fail(ctx, "Sitzung verloren")
		return false, stepErr(StepLoggingIn, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}
	text, err := page.PageText(ctx)
	if err != nil {
		e.fail(ctx, "Sitzung verloren")
		return false, stepErr(StepLoggingIn, fmt.Errorf("%w: %v", ErrSessionUnavailable, err))
	}

	if loginSucceeded(url, text) {
		e.log.Info("login successful", zap.String("url", url))
		e.session.To(StateAuthenticated)
		e.report(StepLoggingIn, "Anmeldung erfolgreich", 100)
		return true, nil
	}

	// Ambiguous failure: collect whatever the provider put into its error
	// containers. Diagnostics only; the outcome stays false and the session
	// stays open for a retry.
	e.log.Warn("login failed or still on login page", zap.String("url", url))
	e.logErrorContainers(ctx, page)
	e.report(StepFailed, "Anmeldung fehlgeschlagen", 0)
	return false, nil
}

// loginSucceeded declares success iff the URL has left both the login-form
// path and the authenticate path, and the page text carries none of the
// known failure phrases.
func loginSucceeded(url, pageText string) bool {
	for _, p := range loginFailurePaths {
		if strings.Contains(url, p) {
			return false
		}
	}
	for _, phrase := range loginFailurePhrases {
		if strings.Contains(pageText, phrase) {
			return false
		}
	}
	return true
}

// enterAndSubmit fills a field and submits it with an Enter keystroke; the
// provider has no reliable "next" button contract.
func enterAndSubmit(ctx context.Context, field browser.Element, value string) error {
	if err := field.Clear(ctx); err != nil {
		return err
	}
	if err := field.Type(ctx, value); err != nil {
		return err
	}
	return field.PressEnter(ctx)
}

// logErrorContainers scans the known error containers and logs any
// non-empty text found.
func (e *Engine) logErrorContainers(ctx context.Context, page browser.Page) {
	for _, sel := range errorContainerSelectors {
		elements, err := page.FindAll(ctx, browser.ByCSS(sel))
		if err != nil {
			continue
		}
		for _, el := range elements {
			text, err := el.Text(ctx)
			if err != nil {
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				e.log.Warn("login error message",
					zap.String("selector", sel), zap.String("text", text))
			}
		}
	}
}

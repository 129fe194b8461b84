// Package web renders the server side pages of the waitlist
package web

import (
	"bitwise74/waitlist-api/app/user"
	"bitwise74/waitlist-api/internal"
	"bitwise74/waitlist-api/internal/metrics"
	"bitwise74/waitlist-api/internal/service"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page template
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// signupForm carries the form state. SiteKey is empty when the turnstile
// guard is off
type signupForm struct {
	Error   string
	Name    string
	Email   string
	Ref     string
	SiteKey string
}

func newSignupForm(c *gin.Context, d *internal.Deps) signupForm {
	f := signupForm{Ref: c.Query("ref")}
	if d.Config.Turnstile.Enabled {
		f.SiteKey = d.Config.Turnstile.SiteKey
	}

	return f
}

// Landing shows the live waitlist size, the leaderboard and the signup form
func Landing(c *gin.Context, d *internal.Deps) {
	ctx := c.Request.Context()

	stats, err := d.Waitlist.Stats(ctx)
	if err != nil {
		renderError(c, err, "Failed to load stats for landing page")
		return
	}

	leaderboard, err := d.Waitlist.Leaderboard(ctx, d.Config.Leaderboard.PageSize)
	if err != nil {
		renderError(c, err, "Failed to load leaderboard for landing page")
		return
	}

	c.HTML(http.StatusOK, "landing.html", gin.H{
		"Title":       "Join the waitlist",
		"Stats":       stats,
		"Leaderboard": leaderboard,
		"Form":        newSignupForm(c, d),
	})
}

func SignupPage(c *gin.Context, d *internal.Deps) {
	c.HTML(http.StatusOK, "signup.html", gin.H{
		"Title": "Sign up",
		"Form":  newSignupForm(c, d),
	})
}

// SignupSubmit handles the plain HTML form. Bad input renders the form again
// with the message, success redirects to the dashboard
func SignupSubmit(c *gin.Context, d *internal.Deps) {
	form := newSignupForm(c, d)
	form.Name = c.PostForm("name")
	form.Email = c.PostForm("email")
	form.Ref = c.PostForm("referredByCode")

	u, err := d.Waitlist.Signup(c.Request.Context(), service.SignupInput{
		Email:          form.Email,
		Name:           form.Name,
		ReferredByCode: form.Ref,
	})
	if err != nil {
		var inputErr *service.InputError

		switch {
		case errors.As(err, &inputErr):
			form.Error = inputErr.Error()
		case errors.Is(err, service.ErrEmailTaken):
			form.Error = "This email is already on the waitlist"
		default:
			renderError(c, err, "Failed to sign up user from form")
			return
		}

		c.HTML(http.StatusBadRequest, "signup.html", gin.H{
			"Title": "Sign up",
			"Form":  form,
		})
		return
	}

	metrics.Signups.WithLabelValues("form").Inc()

	c.Redirect(http.StatusSeeOther, "/dashboard?id="+url.QueryEscape(u.ID))
}

// Dashboard shows a user their code, link and current standing
func Dashboard(c *gin.Context, d *internal.Deps) {
	ctx := c.Request.Context()

	id := c.Query("id")
	if id == "" {
		c.Redirect(http.StatusSeeOther, "/signup")
		return
	}

	u, err := d.Waitlist.UserByID(ctx, id)
	if err != nil {
		renderError(c, err, "Failed to load user for dashboard")
		return
	}

	pos, err := d.Waitlist.Position(ctx, u.ReferralCode)
	if err != nil {
		renderError(c, err, "Failed to load position for dashboard")
		return
	}

	leaderboard, err := d.Waitlist.Leaderboard(ctx, d.Config.Leaderboard.PageSize)
	if err != nil {
		renderError(c, err, "Failed to load leaderboard for dashboard")
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Title":        "Your dashboard",
		"User":         u,
		"Position":     pos,
		"ReferralLink": user.ReferralLink(d.Config.Host.PublicURL, u.ReferralCode),
		"Leaderboard":  leaderboard,
	})
}

func renderError(c *gin.Context, err error, logMsg string) {
	if errors.Is(err, service.ErrNotFound) {
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"Title":   "Not found",
			"Message": "We couldn't find that waitlist entry.",
		})
		return
	}

	zap.L().Error(logMsg, zap.Error(err), zap.String("requestID", c.GetString("requestID")))

	c.HTML(http.StatusInternalServerError, "error.html", gin.H{
		"Title":   "Something went wrong",
		"Message": "Internal server error",
	})
}

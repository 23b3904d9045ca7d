package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const connectCompletePath = "/spotify/connect_complete"

// OAuthHandler serves the Spotify account linking flow.
//
// The user id travels through the provider as the state parameter and identifies the record the
// callback writes to.
type OAuthHandler struct {
	server *Server
}

func (h *OAuthHandler) Register(e *echo.Echo) {
	e.GET("/spotify/connect", h.connect)
	e.GET("/callback", h.callback)
	e.GET(connectCompletePath, h.complete)
}

// connect redirects to the consent screen, or straight to the completion page when already linked.
func (h *OAuthHandler) connect(c echo.Context) error {
	userID := c.QueryParam("uuid")
	if userID == "" {
		return badRequest("uuid is required")
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	user, err := h.server.deps.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsConnected {
		return c.Redirect(http.StatusFound, connectCompletePath)
	}
	return c.Redirect(http.StatusFound, h.server.deps.Connector.AuthURL(userID))
}

// callback exchanges the authorization code and stores the credentials on the user named by state.
func (h *OAuthHandler) callback(c echo.Context) error {
	if errParam := c.QueryParam("error"); errParam != "" {
		return badRequest("authorization failed: %s", errParam)
	}

	code := c.QueryParam("code")
	userID := c.QueryParam("state")
	if code == "" || userID == "" {
		return badRequest("code and state are required")
	}

	ctx, cancel := h.server.requestContext(c)
	defer cancel()

	if _, err := h.server.deps.Connector.Connect(ctx, userID, code); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, connectCompletePath)
}

func (h *OAuthHandler) complete(c echo.Context) error {
	return c.HTML(http.StatusOK, connectCompleteHTML)
}

const connectCompleteHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Spotify Connected</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Spotify connected successfully!</h1>
        <p>You may now close this tab.</p>
    </div>
</body>
</html>
`

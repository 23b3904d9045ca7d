// Package server provides the echo HTTP application, middleware, and route handlers for the bubl API.
//
// # Application
//
// [New] builds an [echo.Echo] with request ids, structured request logging, CORS, panic recovery and a
// JSON error handler. Routes are grouped into [Handler] implementations that register themselves.
//
// # Account Linking
//
// [OAuthHandler] serves /spotify/connect, /callback and /spotify/connect_complete. The user id is sent
// through the provider as the state parameter; the callback exchanges the code and merges the new
// credentials into the existing user document.
//
// # Error Mapping
//
// Handlers return domain errors and [StatusFor] translates them:
//   - missing user or document : 404
//   - Spotify not connected : 409
//   - invalid input : 400
//   - provider rejected, stale token, provider error : 502
//   - provider timeout : 504
//
// Every failure is written as {"error": "..."}.
package server

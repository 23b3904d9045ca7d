// Package models defines the documents persisted for each bubl user and the process-wide app token.
//
// One user document carries two concerns that must never clobber each other:
//   - Spotify credentials ([UserTokenRecord]) written by the OAuth callback and the token refresher
//   - Profile data ([User.Bio]) written by the profile endpoints
//
// Writers therefore use partial updates ([TokenUpdate.Fields], [ProfileUpdate.Fields]), never full replacement.
//
// Board documents ([Board]) live in their own collection keyed by the same user id.
//
// All timestamps are normalized to UTC before comparison or persistence.
package models

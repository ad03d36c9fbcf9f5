// Package youtube binds the broadcast workflow to the YouTube Data API v3.
//
// Consumers depend on the Service interface; Client is the live
// implementation and youtubetest.Fake the in-memory one.
package youtube

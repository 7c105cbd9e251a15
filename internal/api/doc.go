// Package api exposes the HTTP surface for submitting and observing video
// generation jobs.
package api

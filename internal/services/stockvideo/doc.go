// Package stockvideo integrates a stock-footage search provider.
package stockvideo

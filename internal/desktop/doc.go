// Package desktop declares the window/pointer capability boundary the driver
// calls out to when bypassing the worker's protocol. No OS implementation
// lives in this repository.
package desktop

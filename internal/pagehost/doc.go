// Package pagehost runs one page: its window, its realm and the bridge that
// connects them to a coordinator over Channel A.
package pagehost

// Package output validates what a plugin renders from its own example.
//
// The gate cannot interpret the target typesetting language, so it checks
// two cheap structural properties instead: no HTML-like markup anywhere, and
// a first line that starts with a directive.
package output

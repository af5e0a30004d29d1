// Package e2e holds the browser scenarios of the login suite. They are
// compiled with the e2e build tag and driven by `suitectl run`.
package e2e

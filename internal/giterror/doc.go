// Package giterror classifies the errors a harvest run can hit. The retry
// decorator asks it whether a failure is worth another attempt and how long
// the server asked it to wait.
package giterror

// Package configfactory is the default Configuration Factory collaborator
// (spec.md §6.2): it turns a command's argv into a core.Configuration by
// recognizing the per-command keys in §6.3 (every key except the
// scheduler-wide shutdown timeout), using the standard library flag package.
package configfactory

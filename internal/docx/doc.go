// Package docx edits WordprocessingML (.docx) packages in place: it replaces
// literal placeholder tokens with text or with an inline picture while leaving
// every untouched run, paragraph and package part exactly as the template
// author wrote it.
//
// Text substitution works run by run. A token that the editor split across
// several runs (for instance because half of it was spell-checked or
// re-styled) is not replaced; authors must retype such tokens in one go.
package docx

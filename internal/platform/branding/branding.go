// Package branding centralizes product naming for page titles and
// user-facing copy.
package branding

// AppName is the public product name.
const AppName = "CourseForge"

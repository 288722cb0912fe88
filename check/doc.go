// Package check contains the building blocks of an mxprobe run: address
// syntax validation, the caching MX Resolver and the SMTPProber.
// These types can be used directly, but the recommended approach is
// to use the Checker from the github.com/optimode/mxprobe package.
package check

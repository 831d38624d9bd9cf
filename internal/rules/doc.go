// Package rules selects the rule that best describes an inbound message and
// extracts the transaction amount from it.
//
// Rules are ranked by how precisely their scope fits the message context:
// an exact card match beats a method match, which beats a channel match,
// which beats a global rule. Inside a tier the rule's declared priority
// decides, and equal priorities keep the order the rules were supplied in.
// A rule is only eligible when every one of its keywords appears in the
// lower-cased message text.
//
// Nothing in this package returns an error for bad user input. A pattern
// that does not compile, a capture group that does not exist or a number
// that does not parse all mean "no amount", and the caller decides what to
// do next.
package rules

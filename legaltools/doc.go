// Package legaltools implements the legal tool operations: clause
// comparison, date arithmetic, jurisdiction lookup, DOCX rendering and
// question answering over a PDF.
//
// Every operation is total. Domain failures (a bad date, an unsupported
// jurisdiction, an unwritable file) come back as a structured result with
// status "error" so the calling model can react in-band; Go errors are
// reserved for failures of the machinery itself.
package legaltools

package php

// InsertPosition says where a new use statement goes: after 1-based Line,
// wrapped in Prepend and Append.
type InsertPosition struct {
	Line    int    `json:"line"`
	Prepend string `json:"prepend"`
	Append  string `json:"append"`
}

// GetInsertPosition picks the line after the last use statement, else after
// the namespace, else after the open tag. A type declaration at most one line
// below keeps a blank line between it and the import.
func GetInsertPosition(d DeclarationLines) InsertPosition {
	pos := InsertPosition{Line: d.PHPTag, Append: "\n"}
	if d.PHPTag != 0 {
		pos.Prepend = "\n"
	}
	if d.PHPTag == 0 && d.Namespace != 0 {
		pos.Prepend = "\n"
	}

	switch {
	case d.LastUseStatement != 0:
		pos.Prepend = ""
		pos.Line = d.LastUseStatement
	case d.Namespace != 0:
		pos.Line = d.Namespace
	}

	if d.ClassDeclaration != 0 {
		if gap := d.ClassDeclaration - pos.Line; gap >= 0 && gap <= 1 {
			pos.Append = "\n\n"
		}
	}
	return pos
}

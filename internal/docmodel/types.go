package docmodel

// Kind classifies a documented symbol.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindOther    Kind = "other"
)

// Location is where a symbol is declared. Line is 1-based, Col is 0-based.
type Location struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

// Symbol is one exported, documented declaration of a module.
type Symbol struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Location Location `json:"location"`

	// Examples holds the raw text of every @example tag, in tag order.
	Examples []string `json:"examples,omitempty"`

	// Members holds the methods of a class. Empty for other kinds.
	Members []Symbol `json:"members,omitempty"`
}

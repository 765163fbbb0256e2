package render

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by call kind.
	EdgeCall     string // direct calls
	EdgeTail     string // jumps into another function
	EdgeIndirect string // calls through a register or memory
	EdgeRef      string // symbol references in text listings

	// Branch edges in block graphs.
	EdgeTaken       string
	EdgeFallthrough string

	// Node accents.
	EntryBorder  string
	ExitFill     string // blocks ending in a return
	ExternalText string // callees outside the graph

	// Cluster styling.
	ClusterBorder string
	ClusterLabel  string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeCall:     "#424242", // dark gray
	EdgeTail:     "#00695C", // teal
	EdgeIndirect: "#FC3D21", // NASA red
	EdgeRef:      "#9E9E9E", // gray

	EdgeTaken:       "#0B3D91", // NASA blue
	EdgeFallthrough: "#FC3D21",

	EntryBorder:  "#0B3D91",
	ExitFill:     "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}

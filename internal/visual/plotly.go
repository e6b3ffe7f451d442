package visual

// The subset of the plotly.js figure schema the chart uses. Field names
// follow plotly's JSON attribute names.

type Figure struct {
	Data   []Bar  `json:"data"`
	Layout Layout `json:"layout"`
}

type Bar struct {
	Type         string    `json:"type"`
	Name         string    `json:"name"`
	X            []string  `json:"x"`
	Y            []float64 `json:"y"`
	Text         []string  `json:"text"`
	TextPosition string    `json:"textposition"`
	Marker       Marker    `json:"marker"`
	OffsetGroup  string    `json:"offsetgroup"`
	XAxis        string    `json:"xaxis"`
	YAxis        string    `json:"yaxis"`
}

type Marker struct {
	Color string `json:"color"`
}

type Title struct {
	Text string `json:"text"`
}

type Axis struct {
	Title      Title     `json:"title"`
	Anchor     string    `json:"anchor,omitempty"`
	Domain     []float64 `json:"domain,omitempty"`
	Overlaying string    `json:"overlaying,omitempty"`
	Side       string    `json:"side,omitempty"`
}

type Legend struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Margin struct {
	L int `json:"l"`
	R int `json:"r"`
	T int `json:"t"`
	B int `json:"b"`
}

type Layout struct {
	Title   Title  `json:"title"`
	XAxis   Axis   `json:"xaxis"`
	YAxis   Axis   `json:"yaxis"`
	YAxis2  Axis   `json:"yaxis2"`
	BarMode string `json:"barmode"`
	Legend  Legend `json:"legend"`
	Height  int    `json:"height"`
	Margin  Margin `json:"margin"`
}

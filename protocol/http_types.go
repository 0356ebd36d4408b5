package protocol

// HttpMethod classifies request methods by how their parameters are located
type HttpMethod int

const (
	MethodOther HttpMethod = iota
	MethodGet
	MethodPost
)

// ParseMethod classifies a method token; matching is case-sensitive
func ParseMethod(method string) HttpMethod {
	switch method {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	default:
		return MethodOther
	}
}

func (m HttpMethod) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	default:
		return "OTHER"
	}
}

// Param is a key/value pair exactly as it appeared on the wire
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list; duplicate keys are kept
type Params []Param

// Get returns the value of the first parameter named key
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Values returns every value recorded for key, in order of appearance
func (p Params) Values(key string) []string {
	var out []string
	for _, param := range p {
		if param.Key == key {
			out = append(out, param.Value)
		}
	}
	return out
}

// RequestLine holds the three tokens of an HTTP request line
type RequestLine struct {
	Method string
	Target string // path, possibly followed by ?query
	Proto  string
}

// Kind classifies the request method
func (r RequestLine) Kind() HttpMethod {
	return ParseMethod(r.Method)
}

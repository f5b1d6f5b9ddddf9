package templates

// Visitor is the model of the greeting template.
type Visitor struct {
	Name string
}

package templates

func broken() int {
	return undefinedValue
}

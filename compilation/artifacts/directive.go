package artifacts

import (
	"bufio"
	"strconv"
	"strings"
)

// KeyFileDirective is the comment directive naming the key an artifact is signed with.
const KeyFileDirective = "//stencil:keyfile"

// KeyFileSource returns the source of the marker unit carrying the key file directive for keyPath.
func KeyFileSource(packageName string, keyPath string) string {
	return "package " + packageName + "\n\n" + KeyFileDirective + " " + strconv.Quote(keyPath) + "\n"
}

// FindKeyFile returns the key path named by the first key file directive in source, if any.
func FindKeyFile(source string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		argument, found := strings.CutPrefix(line, KeyFileDirective+" ")
		if !found {
			continue
		}
		keyPath, err := strconv.Unquote(strings.TrimSpace(argument))
		if err != nil || keyPath == "" {
			continue
		}
		return keyPath, true
	}
	return "", false
}

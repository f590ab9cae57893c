package pass5

import (
	"fmt"
	"strings"

	"tenor/internal/ast"
	"tenor/internal/elaborate"
	"tenor/internal/elaborate/pass2"
)

func validateSource(c ast.RawConstruct, _ *pass2.Index) error {
	var required []string
	switch {
	case c.Protocol == "http":
		required = []string{"base_url"}
	case c.Protocol == "database":
		required = []string{"dialect"}
	case c.Protocol == "graphql":
		required = []string{"endpoint"}
	case c.Protocol == "grpc":
		required = []string{"endpoint"}
	case c.Protocol == "static" || c.Protocol == "manual":
		required = nil
	case strings.HasPrefix(c.Protocol, "x_"):
		if !validExtensionTag(c.Protocol) {
			return elaborate.New(5, c.Prov.File, c.Prov.Line,
				fmt.Sprintf("invalid extension protocol tag '%s'", c.Protocol)).
				WithConstruct("Source", c.ID).WithField("protocol")
		}
		required = nil
	default:
		return elaborate.New(5, c.Prov.File, c.Prov.Line,
			fmt.Sprintf("unknown protocol tag '%s'", c.Protocol)).
			WithConstruct("Source", c.ID).WithField("protocol")
	}

	for _, req := range required {
		if _, ok := c.SourceFields[req]; !ok {
			return elaborate.New(5, c.Prov.File, c.Prov.Line,
				fmt.Sprintf("source '%s' with protocol '%s' is missing required field '%s'", c.ID, c.Protocol, req)).
				WithConstruct("Source", c.ID).WithField("protocol")
		}
	}
	return nil
}

func validExtensionTag(tag string) bool {
	if len(tag) <= 2 || strings.Contains(tag, "..") || strings.HasSuffix(tag, ".") {
		return false
	}
	for _, seg := range strings.Split(tag[2:], ".") {
		if seg == "" {
			return false
		}
		if seg[0] < 'a' || seg[0] > 'z' {
			return false
		}
		for _, r := range seg {
			if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
				return false
			}
		}
	}
	return true
}

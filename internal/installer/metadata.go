package installer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MetadataSource is a release metadata endpoint and its mirrored equivalent.
type MetadataSource struct {
	Primary  string
	Fallback string
}

// Release metadata endpoints. The fallback serves the same JSON shape.
var (
	PatchMetadata = MetadataSource{
		Primary:  "https://api.github.com/repos/LiteLoaderQQNT/QQNTFileVerifyPatch/releases/latest",
		Fallback: "https://api.hydroroll.team/api/version?repo=LiteLoaderQQNT/QQNTFileVerifyPatch&type=github-releases-latest",
	}
	PluginMetadata = MetadataSource{
		Primary:  "https://api.github.com/repos/LLOneBot/LLOneBot/releases/latest",
		Fallback: "https://api.hydroroll.team/api/version?repo=LLOneBot/LLOneBot&type=github-releases-latest",
	}
)

// release is the part of a release metadata document the installer reads.
type release struct {
	TagName string `json:"tag_name"`
}

// parseTag extracts tag_name from release metadata. The tag is used verbatim
// but must be a single path segment.
func parseTag(data []byte) (string, error) {
	var r release
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("decode release metadata: %w", err)
	}
	if r.TagName == "" {
		return "", ErrMissingTag
	}
	if err := validateTag(r.TagName); err != nil {
		return "", err
	}
	return r.TagName, nil
}

func validateTag(tag string) error {
	if tag == "." || strings.Contains(tag, "..") || strings.ContainsAny(tag, "/\\\x00?#") {
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	return nil
}

package manifest

import (
	"reflect"
	"testing"
)

func TestValidateFile_ValidManifests(t *testing.T) {
	validFiles := []string{
		"valid-full.yaml",
		"valid-minimal.json",
	}

	for _, file := range validFiles {
		t.Run(file, func(t *testing.T) {
			result, err := ValidateFile(testPath(file))
			if err != nil {
				t.Fatalf("ValidateFile(%s) error: %v", file, err)
			}
			if !result.Valid {
				t.Errorf("expected valid, got invalid with %d issues:", len(result.Issues))
				for _, issue := range result.Issues {
					t.Errorf("  path=%s keyword=%s message=%s", issue.Path, issue.Keyword, issue.Message)
				}
			}
		})
	}
}

func TestValidateFile_InvalidManifests(t *testing.T) {
	invalidFiles := []struct {
		file    string
		desc    string
		keyword string
	}{
		{"invalid-missing-name.yaml", "missing required versionName", "required"},
		{"invalid-negative-code.yaml", "negative versionCode", "minimum"},
		{"invalid-uris-type.yaml", "downloadUris is not an array", "type"},
	}

	for _, tt := range invalidFiles {
		t.Run(tt.file, func(t *testing.T) {
			result, err := ValidateFile(testPath(tt.file))
			if err != nil {
				t.Fatalf("ValidateFile(%s) unexpected error: %v", tt.file, err)
			}
			if result.Valid {
				t.Fatalf("expected invalid for %s (%s), but got valid", tt.file, tt.desc)
			}
			if len(result.Issues) == 0 {
				t.Fatalf("expected at least one issue for %s (%s)", tt.file, tt.desc)
			}

			found := false
			for _, issue := range result.Issues {
				if issue.Keyword == tt.keyword {
					found = true
				}
			}
			if !found {
				t.Errorf("no %q issue in %+v", tt.keyword, result.Issues)
			}
		})
	}
}

func TestValidate_EmptyDocument(t *testing.T) {
	result, err := Validate([]byte(""))
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.Valid {
		t.Error("expected empty document to be invalid")
	}
}

func TestValidate_InvalidYAML(t *testing.T) {
	if _, err := Validate([]byte("latestVersion: {versionName: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate_IssuesOrderedByPath(t *testing.T) {
	doc := []byte(`latestVersion:
  versionCode: 3
downloadUris: https://example.com/app.apk
`)
	result, err := Validate(doc)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid manifest")
	}

	var got []string
	for _, issue := range result.Issues {
		got = append(got, issue.Path+" "+issue.Keyword)
	}
	want := []string{"/downloadUris type", "/latestVersion required"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("issues = %v, want %v", got, want)
	}
}

func TestValidate_NonStringKeys(t *testing.T) {
	doc := []byte(`latestVersion:
  versionName: "1.0"
  1: ignored
`)
	result, err := Validate(doc)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid, got %+v", result.Issues)
	}
}

// Package categorization implements the categorization proxy backend: a
// read-only, reference-holding backend that walks an inner storage's
// directory tree and emits subcontainers derived from `prefix@postfix`
// directory-name tags, per spec sections 4.4 and 8. Translated directly
// from original_source/wildland/storage_backends/categorization_proxy.py's
// _get_category_info/_filename_to_category_path state machine — this is
// the one piece of the original spec.md's distillation left untested in
// prose form, so the decomposition logic here must match the original
// byte-for-byte, not just in spirit.
package categorization

import (
	"strings"
)

// SplitCategoryTag extracts the (prefix, postfix) category-path
// decomposition of a single directory name. At most one '@' tag is
// recognized. A name with no tag has its underscores converted to slashes
// and becomes the prefix, with an empty postfix. A name with multiple tags
// (or a bare trailing '@') is kept literally: returned as prefix
// "/"+dirName with an empty postfix.
func SplitCategoryTag(dirName string) (prefix, postfix string) {
	before, after, found := strings.Cut(dirName, "@")
	if !found {
		return filenameToCategoryPath(dirName), ""
	}
	if strings.HasSuffix(dirName, "@") || strings.Contains(after, "@") {
		return "/" + dirName, ""
	}
	return filenameToCategoryPath(before), filenameToCategoryPath(after)
}

// filenameToCategoryPath converts an underscore-joined category path into
// one joined with slashes. A run of adjacent underscores has only its
// first underscore converted; the rest are kept literally, so
// "aaa__bbb" -> "/aaa/_bbb", not "/aaa//bbb".
func filenameToCategoryPath(categoryPath string) string {
	if categoryPath == "_" {
		return "/_"
	}

	var converted strings.Builder
	if !strings.HasPrefix(categoryPath, "_") {
		converted.WriteString("/")
	}

	idx := 0
	n := len(categoryPath)
	for idx < n {
		rel := strings.IndexByte(categoryPath[idx:], '_')
		if rel == -1 {
			converted.WriteString(categoryPath[idx:])
			break
		}
		sep := idx + rel
		converted.WriteString(categoryPath[idx:sep])
		converted.WriteString("/")
		idx = sep + 1
		for idx < n && categoryPath[idx] == '_' {
			converted.WriteByte('_')
			idx++
		}
	}

	out := converted.String()
	if strings.HasSuffix(out, "/") {
		return out[:len(out)-1]
	}
	return out
}

// SubcontainerInfo is one inferred subcontainer: the inner-storage
// directory it bottoms out at, its title (the trailing path segment of the
// still-open category at that point), and the accumulated closed
// categories.
type SubcontainerInfo struct {
	DirPath    string
	Title      string
	Categories []string
}

// DirLister is the hook the inner storage provides: list immediate
// children of a directory, and report whether each child is itself a
// directory.
type DirLister interface {
	ReadDir(path string) ([]string, error)
	IsDir(path string) (bool, error)
}

// Walk recursively decomposes the inner storage's tree into subcontainers,
// using the same open/closed-category accumulation as
// _get_categories_to_subcontainer_map_recursive: closed categories persist
// down the tree once a directory's postfix closes them; the open category
// keeps extending until a file is found, at which point its last path
// segment becomes the subcontainer title.
func Walk(lister DirLister) ([]SubcontainerInfo, error) {
	seen := map[string]bool{}
	var out []SubcontainerInfo
	if err := walk(lister, "", "", nil, seen, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(lister DirLister, dirPath, openCategory string, closedCategories []string, seen map[string]bool, out *[]SubcontainerInfo) error {
	names, err := lister.ReadDir(dirPath)
	if err != nil {
		return err
	}

	for _, name := range names {
		path := joinPath(dirPath, name)
		isDir, err := lister.IsDir(path)
		if err != nil {
			return err
		}

		if isDir {
			prefix, postfix := SplitCategoryTag(name)
			var newOpen string
			var newClosed []string
			if postfix != "" {
				concatenated := openCategory + prefix
				newClosed = append(append([]string{}, closedCategories...), nonEmpty(concatenated)...)
				newOpen = postfix
			} else {
				newClosed = closedCategories
				newOpen = openCategory + prefix
			}
			if err := walk(lister, path, newOpen, newClosed, seen, out); err != nil {
				return err
			}
			continue
		}

		tmpOpen, title := rpartitionSlash(openCategory)
		closed := closedCategories
		if tmpOpen != "" {
			closed = appendUnique(closed, tmpOpen)
		}
		categories := closed
		if len(categories) == 0 {
			categories = []string{"/unclassified"}
		}

		key := strings.Join(categories, "\x00") + "\x01" + title
		if seen[key] {
			continue
		}
		seen[key] = true

		*out = append(*out, SubcontainerInfo{
			DirPath:    dirPath,
			Title:      title,
			Categories: append([]string(nil), categories...),
		})
	}
	return nil
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// rpartitionSlash splits s at the last '/', mirroring Python's
// str.rpartition('/'): returns ("", s) if there is no '/'.
func rpartitionSlash(s string) (before, after string) {
	idx := strings.LastIndex(s, "/")
	if idx == -1 {
		return "", s
	}
	return s[:idx], s[idx+1:]
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimRight(dir, "/") + "/" + name
}

package commands

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// dotfiles are stored without their leading dot so go:embed picks them up.
var dotfiles = map[string]string{
	"gitignore": ".gitignore",
	"gitkeep":   ".gitkeep",
}

// projectTemplate is one of the embedded starter projects used by init.
type projectTemplate struct {
	name string
	fsys fs.FS
}

func loadProjectTemplate(name string) (*projectTemplate, error) {
	if _, err := fs.Stat(templateFS, path.Join("templates", name)); err != nil {
		return nil, fmt.Errorf("unknown project template %q", name)
	}
	sub, err := fs.Sub(templateFS, path.Join("templates", name))
	if err != nil {
		return nil, err
	}
	return &projectTemplate{name: name, fsys: sub}, nil
}

// targetName maps an embedded slash path to its name on disk.
func targetName(p string) string {
	dir, base := path.Split(p)
	if dot, ok := dotfiles[base]; ok {
		return dir + dot
	}
	return p
}

// Files lists the files the template installs, as slash paths relative to
// the project root, sorted.
func (p *projectTemplate) Files() ([]string, error) {
	var files []string
	err := fs.WalkDir(p.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		files = append(files, targetName(name))
		return nil
	})
	sort.Strings(files)
	return files, err
}

// Install writes the template under dir. Existing files are kept unless
// force is set; the returned slice lists the files actually written.
func (p *projectTemplate) Install(dir string, force bool) ([]string, error) {
	var written []string
	err := fs.WalkDir(p.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || name == "." {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(targetName(name)))
		if d.IsDir() {
			return os.MkdirAll(target, 0750)
		}

		if !force {
			if _, err := os.Stat(target); err == nil {
				return nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}

		content, err := fs.ReadFile(p.fsys, name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0600); err != nil {
			return err
		}
		written = append(written, targetName(name))
		return nil
	})
	return written, err
}

// groupFiles splits installed files into configuration and job documents.
func groupFiles(files []string) (configFiles, jobFiles []string) {
	for _, f := range files {
		if strings.HasPrefix(f, "jobs/") {
			jobFiles = append(jobFiles, f)
			continue
		}
		configFiles = append(configFiles, f)
	}
	return configFiles, jobFiles
}

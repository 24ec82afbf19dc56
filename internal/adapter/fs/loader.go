package fs

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"lexrag/config"
	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/domain"
	"lexrag/internal/port"
)

// headerLines bounds how far into a document a revocation banner is looked for.
const headerLines = 5

var revokedBanner = regexp.MustCompile(`^[#*\s]*REVOGAD[OA]\b`)

// Loader turns corpus files into documents: id, category, department,
// default status and revision are all derived here.
type Loader struct {
	walker      port.FileWalker
	reader      port.FileReader
	marker      string
	departments []string
}

func NewLoader(cfg config.CorpusConfig) *Loader {
	marker := strings.ToUpper(cfg.RevokedMarker)
	if marker == "" {
		marker = "REVOGAD"
	}
	depts := make([]string, len(cfg.Departments))
	for i, d := range cfg.Departments {
		depts[i] = strings.ToUpper(d)
	}
	return &Loader{
		walker:      NewWalker(cfg.Includes, cfg.Excludes),
		reader:      OSReader{},
		marker:      marker,
		departments: depts,
	}
}

// Discover lists the corpus files under root.
func (l *Loader) Discover(root string) ([]port.FileInfo, error) {
	return l.walker.Walk(root)
}

// Load reads one discovered file and builds its document.
func (l *Loader) Load(root string, f port.FileInfo) (domain.Document, error) {
	content, err := l.reader.ReadFile(f.Path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", f.Path, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return domain.Document{}, err
	}
	rel, err := filepath.Rel(absRoot, f.Path)
	if err != nil {
		return domain.Document{}, err
	}
	doc := l.Build(filepath.ToSlash(rel), content)
	doc.ModTime = time.Unix(f.ModTime, 0)
	return doc, nil
}

// Build derives a document from its corpus-relative path and content.
func (l *Loader) Build(relPath, content string) domain.Document {
	relPath = filepath.ToSlash(relPath)
	category, dept := l.Classify(relPath)

	status := domain.StatusValid
	if l.revokedName(relPath) || revokedHeader(content) {
		status = domain.StatusRevoked
	}

	doc := domain.Document{
		ID:         strings.TrimSuffix(relPath, filepath.Ext(relPath)),
		Path:       relPath,
		Title:      title(content),
		Category:   category,
		Department: dept,
		Status:     status,
		Content:    content,
	}
	doc.Revision = Revision(doc)
	return doc
}

// Classify maps a corpus-relative path to its category. A first directory
// naming a department marks a resolution of that department; otherwise the
// file name decides, defaulting to resolution.
func (l *Loader) Classify(relPath string) (domain.Category, string) {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) > 1 {
		dir := strings.ToUpper(parts[0])
		for _, d := range l.departments {
			if strings.Contains(dir, d) {
				return domain.CategoryResolution, d
			}
		}
	}

	name := analyzer.Fold(parts[len(parts)-1])
	switch {
	case strings.Contains(name, "estatuto"):
		return domain.CategoryStatute, ""
	case strings.Contains(name, "regimento"):
		return domain.CategoryBylaw, ""
	default:
		return domain.CategoryResolution, ""
	}
}

func (l *Loader) revokedName(relPath string) bool {
	base := filepath.Base(relPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Contains(strings.ToUpper(analyzer.Fold(stem)), l.marker)
}

// revokedHeader looks for an upper-case REVOGADO/REVOGADA banner at the start
// of one of the first non-blank lines.
func revokedHeader(content string) bool {
	sc := bufio.NewScanner(strings.NewReader(content))
	seen := 0
	for sc.Scan() && seen < headerLines {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		seen++
		if revokedBanner.MatchString(line) {
			return true
		}
	}
	return false
}

func title(content string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// Revision is a short content hash; chunk ids embed it so a changed document
// never reuses the ids of its previous version.
func Revision(doc domain.Document) string {
	h := sha256.New()
	h.Write([]byte(doc.Content))
	h.Write([]byte{0})
	h.Write([]byte(doc.Status))
	h.Write([]byte{0})
	h.Write([]byte(doc.Category))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

package simpledb

// Catalog is the registry of tables: table id to backing file, name, and
// primary key column. It is populated from a catalog text file with one
// table per line:
//
//	name(colName type [pk], colName type [pk], ...)
//
// where type is int or string (case insensitive) and the optional third
// token pk names the table's primary key column. The backing data file for a
// table is <rootPath>/<name>.dat.

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type tableInfo struct {
	id   int
	name string
	file DBFile
	pkey string
}

type Catalog struct {
	catalogFile string
	rootPath    string
	bufferPool  *BufferPool
	tableMap    map[string]*tableInfo
	idMap       map[int]*tableInfo
	statsMap    map[string]*TableStats
	sync.Mutex
}

func NewCatalog(catalogFile string, bp *BufferPool, rootPath string) *Catalog {
	return &Catalog{
		catalogFile: catalogFile,
		rootPath:    rootPath,
		bufferPool:  bp,
		tableMap:    make(map[string]*tableInfo),
		idMap:       make(map[int]*tableInfo),
		statsMap:    make(map[string]*TableStats),
	}
}

// tableNameToFile returns the path of the data file backing tableName.
func (c *Catalog) tableNameToFile(tableName string) string {
	return filepath.Join(c.rootPath, tableName+".dat")
}

// addTable registers a table with the supplied schema and primary key,
// opening (or creating) its backing heap file. Names are not unique: adding
// a table under an existing name makes the new table the one name lookups
// find.
func (c *Catalog) addTable(named string, desc TupleDesc, pkey string) (DBFile, error) {
	hf, err := NewHeapFile(c.tableNameToFile(named), &desc, c.bufferPool)
	if err != nil {
		return nil, err
	}
	c.Lock()
	defer c.Unlock()
	info := &tableInfo{id: hf.id, name: named, file: hf, pkey: pkey}
	c.tableMap[named] = info
	c.idMap[hf.id] = info
	return hf, nil
}

// GetTable returns the file backing the named table, or NoSuchTableError.
func (c *Catalog) GetTable(named string) (DBFile, error) {
	c.Lock()
	defer c.Unlock()
	info, ok := c.tableMap[named]
	if !ok {
		return nil, SimpleDBError{NoSuchTableError, fmt.Sprintf("no table named %s", named)}
	}
	return info.file, nil
}

// GetPrimaryKey returns the primary key column of the named table, possibly
// empty.
func (c *Catalog) GetPrimaryKey(named string) (string, error) {
	c.Lock()
	defer c.Unlock()
	info, ok := c.tableMap[named]
	if !ok {
		return "", SimpleDBError{NoSuchTableError, fmt.Sprintf("no table named %s", named)}
	}
	return info.pkey, nil
}

// GetTableInfoId returns the table registered under id.
func (c *Catalog) GetTableInfoId(id int) (*tableInfo, error) {
	c.Lock()
	defer c.Unlock()
	info, ok := c.idMap[id]
	if !ok {
		return nil, SimpleDBError{NoSuchTableError, fmt.Sprintf("no table with id %d", id)}
	}
	return info, nil
}

// TableIds returns the registered table ids in ascending order.
func (c *Catalog) TableIds() []int {
	c.Lock()
	defer c.Unlock()
	ids := maps.Keys(c.idMap)
	slices.Sort(ids)
	return ids
}

// LoadSchema loads the catalog text file, registering one table per line.
func (c *Catalog) LoadSchema() error {
	return c.parseCatalogFile()
}

func (c *Catalog) parseCatalogFile() error {
	f, err := os.Open(c.catalogFile)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, desc, pkey, err := parseCatalogLine(line)
		if err != nil {
			return SimpleDBError{ParseError, fmt.Sprintf("%s line %d: %v", c.catalogFile, lineNo, err)}
		}
		if _, err := c.addTable(name, desc, pkey); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// parseCatalogLine parses one catalog entry of the form
// name(col type [pk], ...).
func parseCatalogLine(line string) (string, TupleDesc, string, error) {
	openParen := strings.Index(line, "(")
	closeParen := strings.LastIndex(line, ")")
	if openParen <= 0 || closeParen < openParen {
		return "", TupleDesc{}, "", fmt.Errorf("expected name(col type, ...), got %q", line)
	}
	name := strings.TrimSpace(line[0:openParen])
	body := line[openParen+1 : closeParen]

	var desc TupleDesc
	pkey := ""
	for _, col := range strings.Split(body, ",") {
		tokens := strings.Fields(col)
		if len(tokens) < 2 || len(tokens) > 3 {
			return "", TupleDesc{}, "", fmt.Errorf("malformed column %q", strings.TrimSpace(col))
		}
		colName := tokens[0]
		var colType DBType
		switch strings.ToLower(tokens[1]) {
		case "int":
			colType = IntType
		case "string":
			colType = StringType
		default:
			return "", TupleDesc{}, "", fmt.Errorf("unknown type %q for column %q", tokens[1], colName)
		}
		if len(tokens) == 3 {
			if strings.ToLower(tokens[2]) != "pk" {
				return "", TupleDesc{}, "", fmt.Errorf("unexpected token %q for column %q", tokens[2], colName)
			}
			pkey = colName
		}
		desc.Fields = append(desc.Fields, FieldType{Fname: colName, Ftype: colType})
	}
	if len(desc.Fields) == 0 {
		return "", TupleDesc{}, "", fmt.Errorf("table %q has no columns", name)
	}
	return name, desc, pkey, nil
}

// ComputeTableStats builds statistics for every registered table.
func (c *Catalog) ComputeTableStats() error {
	c.Lock()
	infos := maps.Values(c.tableMap)
	c.Unlock()
	for _, info := range infos {
		stats, err := ComputeTableStats(c.bufferPool, info.file)
		if err != nil {
			return err
		}
		c.Lock()
		c.statsMap[info.name] = stats
		c.Unlock()
	}
	return nil
}

// GetTableStats returns the statistics computed for the named table, or nil.
func (c *Catalog) GetTableStats(named string) *TableStats {
	c.Lock()
	defer c.Unlock()
	return c.statsMap[named]
}

// CatalogString renders the catalog in the format it is parsed from, one
// table per line.
func (c *Catalog) CatalogString() string {
	c.Lock()
	defer c.Unlock()
	names := maps.Keys(c.tableMap)
	slices.Sort(names)

	var sb strings.Builder
	for _, name := range names {
		info := c.tableMap[name]
		cols := make([]string, 0, len(info.file.Descriptor().Fields))
		for _, f := range info.file.Descriptor().Fields {
			col := fmt.Sprintf("%s %s", f.Fname, f.Ftype)
			if f.Fname == info.pkey {
				col += " pk"
			}
			cols = append(cols, col)
		}
		fmt.Fprintf(&sb, "%s(%s)\n", name, strings.Join(cols, ", "))
	}
	return sb.String()
}

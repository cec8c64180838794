package usecase

import (
	"fmt"
	"os"
	"strings"
)

// DefaultSchema grounds Cypher generation when no schema file is configured.
const DefaultSchema = `Road Safety Infrastructure Schema:

Node Labels:
- InfrastructureIssue (s_no, problem, category, type, data, code, clause)

Properties:
- type: 'STOP Sign', 'Speed Bump', 'Hospital Sign'
- problem: 'Damaged', 'Faded', 'Missing', 'Height Issue'
- category: 'Road Sign', 'Road Marking', 'Traffic Calming Measures'
- code: 'IRC:67-2022', 'IRC:35-2015'

Example Queries:
MATCH (i:InfrastructureIssue) WHERE i.type = 'STOP Sign' RETURN i.s_no, i.type, i.problem
MATCH (i:InfrastructureIssue) WHERE i.problem = 'Damaged' RETURN i.type, i.code
MATCH (i:InfrastructureIssue) WHERE i.code = 'IRC:67-2022' RETURN i.type, i.problem`

// LoadSchema reads the graph schema description from a file.
func LoadSchema(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read schema file: %w", err)
	}
	schema := strings.TrimSpace(string(data))
	if schema == "" {
		return "", fmt.Errorf("schema file %s is empty", path)
	}
	return schema, nil
}

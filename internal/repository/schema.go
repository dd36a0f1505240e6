package repository

// Schema definitions, compatible with both SQLite and PostgreSQL.

const schemaCases = `
CREATE TABLE IF NOT EXISTS cases (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    zone TEXT NOT NULL,
    district TEXT NOT NULL,
    sr_code TEXT NOT NULL,
    sr_name TEXT NOT NULL,
    doc_type TEXT,
    risk_level TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    leakage_signals TEXT NOT NULL,
    case_status TEXT NOT NULL,
    gap_inr REAL NOT NULL,
    payable_inr REAL NOT NULL,
    paid_inr REAL NOT NULL,
    confidence INTEGER NOT NULL,
    r_date TEXT,
    sla TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_cases_tenant ON cases(tenant_id);
CREATE INDEX IF NOT EXISTS idx_cases_risk ON cases(tenant_id, risk_score);
CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(tenant_id, case_status);
CREATE INDEX IF NOT EXISTS idx_cases_office ON cases(tenant_id, sr_code);
`

const schemaEvaluations = `
CREATE TABLE IF NOT EXISTS evaluations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    case_id TEXT NOT NULL,
    sr_code TEXT NOT NULL,
    result TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_tenant ON evaluations(tenant_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_case ON evaluations(tenant_id, case_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_office ON evaluations(tenant_id, sr_code, created_at);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    category TEXT NOT NULL,
    severity TEXT NOT NULL,
    confidence INTEGER NOT NULL,
    velocity_window_secs INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_tenant ON rule_configs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCases,
		schemaEvaluations,
		schemaRuleConfigs,
	}
}

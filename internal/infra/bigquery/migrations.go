package bigquery

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Migration is one versioned DDL script. SQL may reference
// {{PROJECT_ID}} and {{DATASET_ID}}.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Render substitutes the target project and dataset.
func (m Migration) Render(projectID, datasetID string) string {
	sql := strings.ReplaceAll(m.SQL, "{{PROJECT_ID}}", projectID)
	return strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)
}

// Checksum is taken over the template, so the same migration applied to
// different datasets has one checksum.
func (m Migration) Checksum() string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(m.SQL)))
}

// Migrations lists the dataset schema in apply order.
var Migrations = []Migration{
	{Version: 1, Name: "create_parsing_runs", SQL: `
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.parsing_runs`" + ` (
			parsing_run_id STRING NOT NULL,
			document_id STRING,
			source_uri STRING NOT NULL,
			document_type STRING,
			parser_name STRING,
			started_ts TIMESTAMP NOT NULL,
			finished_ts TIMESTAMP,
			status STRING NOT NULL,
			failed_stage STRING,
			error_message STRING,
			record_count INT64,
			metadata JSON
		)
		PARTITION BY DATE(started_ts)
	`},
	{Version: 2, Name: "create_model_outputs", SQL: `
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.model_outputs`" + ` (
			output_id STRING NOT NULL,
			parsing_run_id STRING NOT NULL,
			document_id STRING,
			model_name STRING NOT NULL,
			method STRING,
			raw_json JSON,
			extracted_text STRING,
			confidence FLOAT64,
			created_ts TIMESTAMP NOT NULL,
			notes STRING
		)
	`},
	{Version: 3, Name: "create_documents", SQL: `
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.documents`" + ` (
			document_id STRING NOT NULL,
			parsing_run_id STRING NOT NULL,
			source_uri STRING NOT NULL,
			document_type STRING NOT NULL,
			format STRING,
			institution STRING,
			title STRING,
			original_filename STRING,
			identifier_hash STRING NOT NULL,
			content_hash STRING NOT NULL,
			outcome STRING NOT NULL,
			matched_by STRING,
			ingested_ts TIMESTAMP NOT NULL,
			metadata JSON
		)
	`},
	{Version: 4, Name: "create_transactions", SQL: `
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.transactions`" + ` (
			transaction_id STRING NOT NULL,
			document_id STRING NOT NULL,
			parsing_run_id STRING NOT NULL,
			transaction_date DATE NOT NULL,
			amount NUMERIC NOT NULL,
			currency STRING NOT NULL,
			balance_after NUMERIC,
			direction STRING NOT NULL,
			kind STRING NOT NULL,
			raw_description STRING NOT NULL,
			merchant STRING,
			category_name STRING,
			account_name STRING,
			account_type STRING,
			created_ts TIMESTAMP NOT NULL
		)
		PARTITION BY transaction_date
	`},
	{Version: 5, Name: "create_holdings_and_balances", SQL: `
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.holdings`" + ` (
			holding_id STRING NOT NULL,
			document_id STRING NOT NULL,
			parsing_run_id STRING NOT NULL,
			symbol STRING,
			description STRING,
			quantity NUMERIC NOT NULL,
			price NUMERIC NOT NULL,
			market_value NUMERIC NOT NULL,
			cost_basis NUMERIC,
			gain_loss NUMERIC,
			account_name STRING,
			account_type STRING,
			asset_type STRING,
			as_of DATE,
			created_ts TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.balances`" + ` (
			balance_id STRING NOT NULL,
			document_id STRING NOT NULL,
			parsing_run_id STRING NOT NULL,
			balance_date DATE NOT NULL,
			account_name STRING,
			account_type STRING,
			balance NUMERIC NOT NULL,
			available_balance NUMERIC,
			created_ts TIMESTAMP NOT NULL
		)
	`},
	{Version: 6, Name: "create_tax_forms", SQL: `
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.tax_forms`" + ` (
			tax_form_id STRING NOT NULL,
			document_id STRING NOT NULL,
			parsing_run_id STRING NOT NULL,
			form_type STRING NOT NULL,
			extraction_method STRING NOT NULL,
			mean_confidence FLOAT64 NOT NULL,
			needs_review BOOL NOT NULL,
			fields JSON,
			confidence JSON,
			created_ts TIMESTAMP NOT NULL
		)
	`},
	{Version: 7, Name: "create_investment_transactions", SQL: `
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.investment_transactions`" + ` (
			investment_transaction_id STRING NOT NULL,
			document_id STRING NOT NULL,
			parsing_run_id STRING NOT NULL,
			trade_date DATE NOT NULL,
			symbol STRING,
			description STRING,
			kind STRING NOT NULL,
			quantity NUMERIC,
			price NUMERIC,
			amount NUMERIC NOT NULL,
			fees NUMERIC,
			account_name STRING,
			created_ts TIMESTAMP NOT NULL
		)
		PARTITION BY trade_date
	`},
}

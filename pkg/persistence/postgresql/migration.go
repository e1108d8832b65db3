package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflows are stored per (id, version) so executions pinned to
			-- older versions stay readable after a new version is published.
			CREATE TABLE workflows (
				id VARCHAR(255) NOT NULL,
				version INTEGER NOT NULL,
				account_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused', 'archived')),
				triggers JSONB NOT NULL DEFAULT '[]',
				goal JSONB,
				steps JSONB NOT NULL DEFAULT '[]',
				retry JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (id, version)
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_account_id ON workflows(account_id);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				workflow_version INTEGER NOT NULL,
				contact_id VARCHAR(255) NOT NULL,
				account_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				current_step_index INTEGER NOT NULL DEFAULT 0,
				current_node_id VARCHAR(255) NOT NULL DEFAULT '',
				retry_count INTEGER NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				converted BOOLEAN NOT NULL DEFAULT FALSE,
				trigger_data JSONB DEFAULT '{}',
				metadata JSONB DEFAULT '{}',
				version INTEGER NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_workflow_contact ON executions(workflow_id, contact_id);
			CREATE INDEX idx_executions_contact_id ON executions(contact_id);

			CREATE TABLE wait_steps (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				step_id VARCHAR(255) NOT NULL,
				wait_type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				scheduled_at TIMESTAMP WITH TIME ZONE,
				event_type VARCHAR(255) NOT NULL DEFAULT '',
				event_timeout_at TIMESTAMP WITH TIME ZONE,
				timeout_action VARCHAR(50) NOT NULL DEFAULT '',
				resumed_by VARCHAR(50) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_wait_steps_execution_id ON wait_steps(execution_id);
			CREATE INDEX idx_wait_steps_due ON wait_steps(status, scheduled_at);
			CREATE INDEX idx_wait_steps_timeout ON wait_steps(status, event_timeout_at);

			CREATE TABLE event_listeners (
				id VARCHAR(255) PRIMARY KEY,
				kind VARCHAR(50) NOT NULL,
				execution_id VARCHAR(255) NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				wait_id VARCHAR(255) NOT NULL DEFAULT '',
				event_type VARCHAR(255) NOT NULL,
				correlation_id VARCHAR(255) NOT NULL,
				filters JSONB,
				status VARCHAR(50) NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_event_listeners_match ON event_listeners(event_type, correlation_id, status);
			CREATE INDEX idx_event_listeners_execution_id ON event_listeners(execution_id);

			CREATE TABLE contacts (
				id VARCHAR(255) PRIMARY KEY,
				account_id VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL DEFAULT '',
				opted_out BOOLEAN NOT NULL DEFAULT FALSE,
				data JSONB DEFAULT '{}',
				tags JSONB DEFAULT '[]',
				pipeline_stages JSONB DEFAULT '{}',
				custom_fields JSONB DEFAULT '{}',
				engagement JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_contacts_account_id ON contacts(account_id);

			CREATE TABLE execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				step_id VARCHAR(255) NOT NULL,
				action_type VARCHAR(255) NOT NULL DEFAULT '',
				config_snapshot JSONB DEFAULT '{}',
				status VARCHAR(50) NOT NULL,
				attempt INTEGER NOT NULL DEFAULT 0,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				response JSONB DEFAULT '{}',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_execution_logs_execution_id ON execution_logs(execution_id);
			CREATE INDEX idx_execution_logs_started_at ON execution_logs(started_at);
		`,
	}
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vk/jobhost/internal/invoker"
)

// InvocationRecord is one row of the invocation log.
type InvocationRecord struct {
	ID            string
	Function      string
	State         string
	FaultStage    string
	FaultParam    string
	FaultMessage  string
	BindingData   map[string]string
	ParameterLogs map[string]string
	Started       time.Time
	Finished      time.Time
}

// Succeeded reports whether the invocation finished without a fault.
func (r *InvocationRecord) Succeeded() bool {
	return r.FaultStage == ""
}

// Record implements invoker.Recorder.
func (s *Store) Record(ctx context.Context, res *invoker.Result) error {
	data, err := json.Marshal(res.Data)
	if err != nil {
		return fmt.Errorf("encoding binding data: %w", err)
	}
	logs, err := json.Marshal(res.ParameterLogs)
	if err != nil {
		return fmt.Errorf("encoding parameter logs: %w", err)
	}

	var stage, param, message string
	if res.Fault != nil {
		stage, param, message = string(res.Fault.Stage), res.Fault.Parameter, res.Fault.Err.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, function, state, fault_stage, fault_param, fault_message,
		                         binding_data, parameter_logs, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Function, res.State().String(), stage, param, message,
		string(data), string(logs), res.Started.UnixMilli(), res.Finished.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording invocation %s: %w", res.ID, err)
	}
	return nil
}

// Invocations returns the most recent invocations, newest first. An empty
// function returns invocations of every function.
func (s *Store) Invocations(ctx context.Context, function string, limit int) ([]*InvocationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, function, state, fault_stage, fault_param, fault_message,
		       binding_data, parameter_logs, started_at, finished_at
		FROM invocations
		WHERE ? = '' OR function = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`,
		function, function, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer rows.Close()

	var out []*InvocationRecord
	for rows.Next() {
		var rec InvocationRecord
		var data, logs string
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Function, &rec.State, &rec.FaultStage, &rec.FaultParam, &rec.FaultMessage,
			&data, &logs, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning invocation: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.BindingData); err != nil {
			return nil, fmt.Errorf("decoding binding data of %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(logs), &rec.ParameterLogs); err != nil {
			return nil, fmt.Errorf("decoding parameter logs of %s: %w", rec.ID, err)
		}
		rec.Started = time.UnixMilli(started)
		rec.Finished = time.UnixMilli(finished)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

package logging

import (
	"go.uber.org/zap"
)

// StepFields tags an entry with the simulation step.
//
// Example:
//
//	logger.Info("Step complete", logging.StepFields(t.TimeName(), t.Index())...)
func StepFields(timeName string, index int) []zap.Field {
	return []zap.Field{
		zap.String("time", timeName),
		zap.Int("time_index", index),
	}
}

// RankField tags an entry with the partition that produced it.
func RankField(rank int) zap.Field {
	return zap.Int("rank", rank)
}

// FunctionFields tags an entry with a function object.
func FunctionFields(name, typeName string) []zap.Field {
	return []zap.Field{
		zap.String("function", name),
		zap.String("function_type", typeName),
	}
}

// RunFields tags an entry with the archived run.
func RunFields(runID, caseName string) []zap.Field {
	return []zap.Field{
		zap.String("run_id", runID),
		zap.String("case", caseName),
	}
}

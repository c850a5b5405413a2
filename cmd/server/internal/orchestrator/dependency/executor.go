package dependency

import "context"

// DependencyExecutor executes external commands.
//
// LocalExecutor is the production implementation; tests substitute fakes.
type DependencyExecutor interface {
	// ExecuteCommand executes a command with the given request.
	// If the context is cancelled, the command should be terminated promptly.
	ExecuteCommand(ctx context.Context, req CommandRequest) (CommandResponse, error)

	// HealthCheck verifies that the executor is ready to handle requests.
	HealthCheck(ctx context.Context) error
}

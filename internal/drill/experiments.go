// internal/drill/experiments.go
package drill

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"videostore/internal/client"
	"videostore/internal/rentals"
)

// RegisterExperiments registers the standard drills against the API behind c.
func (e *Engine) RegisterExperiments(c *client.Client, racers int) {
	e.Register(LastCopyRace(c, racers))
	e.Register(DoubleCheckIn(c))
}

// auditMetric samples the invariant report. A report showing drift is still
// a valid sample.
func auditMetric(c *client.Client) Metric {
	return Metric{
		Name: "invariant_violations",
		Query: func(ctx context.Context) (float64, error) {
			audit, err := c.Audit(ctx)
			if err != nil && client.StatusOf(err) != http.StatusServiceUnavailable {
				return 0, err
			}
			return float64(violations(audit)), nil
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

func violations(a *rentals.Audit) int {
	return a.InventoryDrift + a.NegativeInventory + a.CounterDrift
}

func healthMetric(c *client.Client) Metric {
	return Metric{
		Name: "store_reachable",
		Query: func(ctx context.Context) (float64, error) {
			if err := c.Health(ctx); err != nil {
				return 0, nil
			}
			return 1, nil
		},
		Threshold: Threshold{Operator: "==", Value: 1},
	}
}

// LastCopyRace has racers customers check out the only copy of a video at
// the same time.
func LastCopyRace(c *client.Client, racers int) Experiment {
	if racers < 2 {
		racers = 2
	}
	run := uuid.NewString()[:8]

	var (
		videoID   int64
		customers []int64
		mu        sync.Mutex
		winners   []int64
		rejected  int
	)

	return Experiment{
		Name:        "last-copy-race",
		Hypothesis:  "Exactly one concurrent check-out of the last copy succeeds and the ledger stays balanced",
		SteadyState: []Metric{healthMetric(c), auditMetric(c)},
		Method: []Action{
			{
				Name: "seed",
				Execute: func(ctx context.Context) error {
					v, err := c.CreateVideo(ctx, "drill "+run, "2000-01-01", 1)
					if err != nil {
						return err
					}
					videoID = v.ID
					for i := 0; i < racers; i++ {
						cu, err := c.CreateCustomer(ctx, fmt.Sprintf("drill-%s-%d", run, i), "00000", "555-0000")
						if err != nil {
							return err
						}
						customers = append(customers, cu.ID)
					}
					return nil
				},
			},
			{
				Name: "race",
				Execute: func(ctx context.Context) error {
					var wg sync.WaitGroup
					errs := make([]error, len(customers))
					for i, id := range customers {
						wg.Add(1)
						go func(i int, id int64) {
							defer wg.Done()
							_, err := c.CheckOut(ctx, id, videoID)
							mu.Lock()
							defer mu.Unlock()
							switch {
							case err == nil:
								winners = append(winners, id)
							case client.StatusOf(err) == http.StatusBadRequest:
								rejected++
							default:
								errs[i] = err
							}
						}(i, id)
					}
					wg.Wait()
					return errors.Join(errs...)
				},
			},
		},
		Observe: []Metric{
			{
				Name: "successful_checkouts",
				Query: func(context.Context) (float64, error) {
					mu.Lock()
					defer mu.Unlock()
					return float64(len(winners)), nil
				},
				Threshold: Threshold{Operator: "==", Value: 1},
			},
			{
				Name: "rejected_checkouts",
				Query: func(context.Context) (float64, error) {
					mu.Lock()
					defer mu.Unlock()
					return float64(rejected), nil
				},
				Threshold: Threshold{Operator: "==", Value: float64(racers - 1)},
			},
			{
				Name: "available_inventory",
				Query: func(ctx context.Context) (float64, error) {
					v, err := c.GetVideo(ctx, videoID)
					if err != nil {
						return 0, err
					}
					return float64(v.AvailableInventory), nil
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
		},
		Rollback: []Action{
			{
				Name: "return-and-clean-up",
				Execute: func(ctx context.Context) error {
					var errs []error
					for _, id := range winners {
						if _, err := c.CheckIn(ctx, id, videoID); err != nil {
							errs = append(errs, err)
						}
					}
					for _, id := range customers {
						if err := c.DeleteCustomer(ctx, id); err != nil {
							errs = append(errs, err)
						}
					}
					if videoID != 0 {
						if _, err := c.DeleteVideo(ctx, videoID); err != nil {
							errs = append(errs, err)
						}
					}
					return errors.Join(errs...)
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "successful_checkouts",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "only one racer may take the last copy",
			},
			{
				Metric:    "invariant_violations",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "inventory and counters must balance after the race",
			},
		},
	}
}

// DoubleCheckIn returns the same rental twice.
func DoubleCheckIn(c *client.Client) Experiment {
	run := uuid.NewString()[:8]

	var (
		videoID    int64
		customerID int64
		rejected   int
	)

	return Experiment{
		Name:        "double-check-in",
		Hypothesis:  "A second check-in of the same rental is rejected and changes nothing",
		SteadyState: []Metric{healthMetric(c), auditMetric(c)},
		Method: []Action{
			{
				Name: "seed",
				Execute: func(ctx context.Context) error {
					v, err := c.CreateVideo(ctx, "drill "+run, "2000-01-01", 2)
					if err != nil {
						return err
					}
					videoID = v.ID
					cu, err := c.CreateCustomer(ctx, "drill-"+run, "00000", "555-0000")
					if err != nil {
						return err
					}
					customerID = cu.ID
					return nil
				},
			},
			{
				Name: "check-in-twice",
				Execute: func(ctx context.Context) error {
					if _, err := c.CheckOut(ctx, customerID, videoID); err != nil {
						return err
					}
					if _, err := c.CheckIn(ctx, customerID, videoID); err != nil {
						return err
					}
					_, err := c.CheckIn(ctx, customerID, videoID)
					if client.StatusOf(err) == http.StatusBadRequest {
						rejected++
						return nil
					}
					return err
				},
			},
		},
		Observe: []Metric{
			{
				Name: "rejected_check_ins",
				Query: func(context.Context) (float64, error) {
					return float64(rejected), nil
				},
				Threshold: Threshold{Operator: "==", Value: 1},
			},
			{
				Name: "videos_checked_out",
				Query: func(ctx context.Context) (float64, error) {
					cu, err := c.GetCustomer(ctx, customerID)
					if err != nil {
						return 0, err
					}
					return float64(cu.VideosCheckedOutCount), nil
				},
				Threshold: Threshold{Operator: "==", Value: 0},
			},
			{
				Name: "available_inventory",
				Query: func(ctx context.Context) (float64, error) {
					v, err := c.GetVideo(ctx, videoID)
					if err != nil {
						return 0, err
					}
					return float64(v.AvailableInventory), nil
				},
				Threshold: Threshold{Operator: "==", Value: 2},
			},
		},
		Rollback: []Action{
			{
				Name: "clean-up",
				Execute: func(ctx context.Context) error {
					var errs []error
					if customerID != 0 {
						errs = append(errs, c.DeleteCustomer(ctx, customerID))
					}
					if videoID != 0 {
						_, err := c.DeleteVideo(ctx, videoID)
						errs = append(errs, err)
					}
					return errors.Join(errs...)
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "rejected_check_ins",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "the second check-in must be rejected",
			},
		},
	}
}

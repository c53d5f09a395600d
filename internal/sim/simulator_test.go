package sim_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/sim"
)

var _ = Describe("Simulation", func() {
	var (
		cell *fakeCell
		s    *sim.Simulation
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		cell = newFakeCell()
		var err error
		s, err = sim.New(cell)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("RunStep", func() {
		It("completes a current step and commits its final state", func() {
			sol, err := s.RunStep(ctx, newStep(amps(1), 10, 5))
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(sim.Completed))
			Expect(sol.Success).To(BeTrue())
			Expect(sol.T).To(Equal([]float64{0, 5, 10}))
			Expect(sol.Observables).To(HaveLen(3))

			t0, y, _ := s.State()
			Expect(t0).To(BeNumerically("~", 10, 1e-12))
			Expect(y[0]).To(BeNumerically("~", 10.0/3600, 1e-9))
			Expect(y[2]).To(BeNumerically("~", 1, 1e-12))
		})

		It("reports observables on the experiment clock", func() {
			_, err := s.RunStep(ctx, newStep(amps(0), 10, 5))
			Expect(err).NotTo(HaveOccurred())

			step := newStep(amps(-0.5), 10, 5)
			sol, err := s.RunStep(ctx, step)
			Expect(err).NotTo(HaveOccurred())
			Expect(step.T0).To(BeNumerically("~", 10, 1e-12))
			Expect(sol.Index).To(Equal(1))

			first := sol.Observables[0]
			Expect(first.TimeS).To(BeNumerically("~", 10, 1e-12))
			Expect(first.TimeMin).To(BeNumerically("~", 10.0/60, 1e-12))
			Expect(first.CurrentA).To(BeNumerically("~", -0.5, 1e-12))
			Expect(first.CurrentC).To(BeNumerically("~", -0.5, 1e-12))
			Expect(first.PowerW).To(BeNumerically("~", first.CurrentA*first.VoltageV, 1e-12))
			Expect(sol.Final().TimeS).To(BeNumerically("~", 20, 1e-12))
		})

		It("stops at a voltage limit and commits the event state", func() {
			limit := sim.Limit{Name: sim.VoltageV, Threshold: 3.5505}
			sol, err := s.RunStep(ctx, newStep(amps(1), 10, 1, limit))
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(sim.TerminatedOnEvent))
			Expect(sol.Event).NotTo(BeNil())
			Expect(sol.Event.Limits).To(ConsistOf(limit))

			// v = 3.55 + 0.5*t/3600 crosses the limit at t = 3.6 s
			Expect(sol.Event.T).To(BeNumerically("~", 3.6, 1e-3))
			Expect(sol.Final().VoltageV).To(BeNumerically("~", 3.5505, 1e-6))

			t0, _, _ := s.State()
			Expect(t0).To(BeNumerically("~", sol.Event.T, 1e-12))
		})

		It("holds a voltage with a decaying current", func() {
			sol, err := s.RunStep(ctx, newStep(sim.Voltage{Value: sim.Constant(3.6)}, 60, 10))
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(sim.Completed))

			Expect(sol.Observables[0].CurrentA).To(BeNumerically("~", 2, 1e-6))
			for k := 1; k < len(sol.Observables); k++ {
				Expect(sol.Observables[k].VoltageV).To(BeNumerically("~", 3.6, 1e-8))
				Expect(sol.Observables[k].CurrentA).To(BeNumerically("<", sol.Observables[k-1].CurrentA))
			}
		})

		It("does not commit a failed step", func() {
			_, err := s.RunStep(ctx, newStep(amps(1), 10, 5))
			Expect(err).NotTo(HaveOccurred())
			t0, y0, _ := s.State()

			sol, err := s.RunStep(ctx, newStep(sim.Power{Value: sim.Constant(1)}, 10, 1))
			Expect(err).To(HaveOccurred())
			Expect(sol).NotTo(BeNil())
			Expect(sol.Status).To(Equal(sim.Failed))

			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(1))
			Expect(simErr.Status).To(Equal("FAILED"))

			t1, y1, _ := s.State()
			Expect(t1).To(Equal(t0))
			Expect(y1).To(Equal(y0))
		})

		It("stops when the context is canceled", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := s.RunStep(canceled, newStep(amps(1), 10, 5))
			Expect(err).To(MatchError(dynamo.ErrContextCanceled))
			t0, _, _ := s.State()
			Expect(t0).To(BeZero())
		})

		It("rejects invalid steps before integrating", func() {
			_, err := s.RunStep(ctx, &sim.Step{TSpan: sim.TSpan{Max: 1, Dt: 1}})
			Expect(err).To(MatchError(dynamo.ErrConfig))

			_, err = s.RunStep(ctx, newStep(amps(1), 0, 1))
			Expect(err).To(MatchError(dynamo.ErrConfig))

			_, err = s.RunStep(ctx, newStep(amps(1), 1, 1, sim.Limit{Name: "temperature_K", Threshold: 300}))
			Expect(err).To(MatchError(dynamo.ErrUnknownObservable))
		})

		It("feeds metrics and observers every sample", func() {
			counter := &sampleCounter{}
			rec := &stepRecorder{}
			s.AddMetric(counter)
			s.AddObserver(rec)

			_, err := s.RunStep(ctx, newStep(amps(1), 10, 5))
			Expect(err).NotTo(HaveOccurred())
			_, err = s.RunStep(ctx, newStep(amps(0), 10, 10))
			Expect(err).NotTo(HaveOccurred())

			Expect(counter.Value()).To(Equal(5.0))
			Expect(rec.steps).To(Equal([]int{0, 0, 0, 1, 1}))
		})
	})

	Describe("homotopy", func() {
		BeforeEach(func() {
			cell.slew = 0.012
		})

		It("fails a voltage jump without it", func() {
			_, err := s.RunStep(ctx, newStep(sim.Voltage{Value: sim.Constant(3.6)}, 100, 10))
			Expect(err).To(HaveOccurred())
		})

		It("ramps the target in from the present voltage", func() {
			var err error
			s, err = sim.New(cell, sim.WithHomotopy(3))
			Expect(err).NotTo(HaveOccurred())

			step := newStep(sim.Voltage{Value: sim.Constant(3.6)}, 100, 10)
			sol, err := s.RunStep(ctx, step)
			Expect(err).NotTo(HaveOccurred())
			Expect(sol.Status).To(Equal(sim.Completed))
			Expect(sol.Homotopy).To(Equal(2))
			Expect(sol.Step).To(BeIdenticalTo(step))
			Expect(sol.Message).To(ContainSubstring("homotopy"))
			Expect(sol.Final().VoltageV).To(BeNumerically("~", 3.6, 1e-6))
		})

		It("gives up after the configured attempts", func() {
			var err error
			s, err = sim.New(cell, sim.WithHomotopy(1))
			Expect(err).NotTo(HaveOccurred())

			_, err = s.RunStep(ctx, newStep(sim.Voltage{Value: sim.Constant(3.6)}, 100, 10))
			Expect(err).To(MatchError(ContainSubstring("homotopy failed after 1 attempts")))
		})
	})

	Describe("Run", func() {
		It("stitches steps with a time shift and resets afterwards", func() {
			counter := &sampleCounter{}
			s.AddMetric(counter)
			pre := cell.pre

			cycle, err := s.Run(ctx, []*sim.Step{
				newStep(amps(1), 10, 5),
				newStep(amps(0), 10, 5),
			}, sim.DefaultRunOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(cycle.Success()).To(BeTrue())
			Expect(cycle.Statuses()).To(Equal([]sim.Status{sim.Completed, sim.Completed}))

			Expect(cycle.T).To(HaveLen(6))
			Expect(cycle.T[3]).To(BeNumerically("~", 10+sim.DefaultTShift, 1e-12))
			Expect(cycle.T[5]).To(BeNumerically("~", 20+sim.DefaultTShift, 1e-12))
			Expect(cycle.StepIndex).To(Equal([]int{0, 0, 0, 1, 1, 1}))
			Expect(cycle.Metrics).To(HaveKeyWithValue("samples", 6.0))

			times, err := cycle.Series(sim.TimeS)
			Expect(err).NotTo(HaveOccurred())
			Expect(times[3]).To(BeNumerically("~", 10, 1e-12))

			_, err = cycle.Series("nope")
			Expect(err).To(MatchError(dynamo.ErrUnknownObservable))

			t0, y, _ := s.State()
			Expect(t0).To(BeZero())
			Expect(y[0]).To(BeZero())
			Expect(cell.pre).To(Equal(pre + 1))
		})

		It("keeps the final state when asked to", func() {
			_, err := s.Run(ctx, []*sim.Step{newStep(amps(1), 36, 6)}, sim.RunOptions{TShift: 0})
			Expect(err).NotTo(HaveOccurred())

			t0, y, _ := s.State()
			Expect(t0).To(BeZero())
			Expect(y[0]).To(BeNumerically("~", 0.01, 1e-9))
		})

		It("stops at the first failed step", func() {
			cycle, err := s.Run(ctx, []*sim.Step{
				newStep(amps(1), 10, 5),
				newStep(sim.Power{Value: sim.Constant(1)}, 10, 1),
				newStep(amps(0), 10, 5),
			}, sim.DefaultRunOptions())
			Expect(err).To(HaveOccurred())
			Expect(cycle).NotTo(BeNil())
			Expect(cycle.Steps).To(HaveLen(2))
			Expect(cycle.Statuses()).To(Equal([]sim.Status{sim.Completed, sim.Failed}))
			Expect(cycle.Success()).To(BeFalse())
		})

		It("needs at least one step", func() {
			_, err := s.Run(ctx, nil, sim.DefaultRunOptions())
			Expect(err).To(MatchError(dynamo.ErrConfig))
		})
	})
})

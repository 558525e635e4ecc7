package mpc

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/BALLLIKEPOPI/MPC-ws/internal/dynamo"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/logging"
	"github.com/BALLLIKEPOPI/MPC-ws/internal/nlp"
)

var _ = Describe("Controller", func() {
	var (
		cfg  Config
		sink *recordingSink
		c    *Controller
	)

	BeforeEach(func() {
		cfg = DefaultConfig()
		cfg.Horizon = 3
		cfg.Step = 0.1
		sink = &recordingSink{}
	})

	JustBeforeEach(func() {
		var err error
		c, err = New(cfg, direct{}, nlp.NewAugLag,
			WithSetpoint(Fixed{0.2, 0, 0}), WithSink(sink), WithLogger(logging.Discard()))
		Expect(err).NotTo(HaveOccurred())
	})

	It("is ready once the horizon is built", func() {
		Expect(c.Phase()).To(Equal(PhaseReady))
		Expect(c.Horizon().Layout.NumVars()).To(Equal(21))
	})

	Context("stepping roll from rest to 0.2 rad", func() {
		var res *CycleResult

		JustBeforeEach(func() {
			Expect(c.UpdateState(dynamo.State{0, 0, 0})).To(Succeed())
			var err error
			res, err = c.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})

		It("converges", func() {
			Expect(res.Converged).To(BeTrue())
			Expect(res.Status).To(Equal(nlp.StatusConverged))
			Expect(res.Violation).To(BeNumerically("<=", 1e-6))
		})

		It("commands positive roll only", func() {
			Expect(res.Control[0]).To(BeNumerically("~", 2.0, 0.05))
			Expect(res.Control[1]).To(BeNumerically("~", 0, 1e-6))
			Expect(res.Control[2]).To(BeNumerically("~", 0, 1e-6))
		})

		It("moves roll toward the setpoint without overshoot", func() {
			// X(N) carries no stage cost, so only the costed nodes are
			// checked for monotonicity.
			for k := 1; k < len(res.States)-1; k++ {
				Expect(res.States[k][0]).To(BeNumerically(">=", res.States[k-1][0]-1e-4))
			}
			for _, x := range res.States {
				Expect(x[0]).To(BeNumerically("<=", 0.2+1e-3))
			}
			Expect(res.States[1][0]).To(BeNumerically("~", 0.2, 5e-3))
		})

		It("keeps every control inside the actuator bound", func() {
			for _, u := range res.Controls {
				for _, v := range u {
					Expect(v).To(BeNumerically(">=", -15-1e-6))
					Expect(v).To(BeNumerically("<=", 15+1e-6))
				}
			}
		})

		It("emits the first control to the sink", func() {
			Expect(sink.applied).To(HaveLen(1))
			Expect(sink.applied[0]).To(Equal(res.Control))
			Expect(c.LastFault()).To(BeNil())
		})
	})

	Context("with a measurement at the setpoint", func() {
		It("holds still", func() {
			Expect(c.UpdateState(dynamo.State{0.2, 0, 0})).To(Succeed())
			Expect(c.UpdateState(dynamo.State{0.2, 0, 0})).To(Succeed())

			res, err := c.Solve(context.Background())
			Expect(err).NotTo(HaveOccurred())
			for _, v := range res.Control {
				Expect(v).To(BeNumerically("~", 0, 1e-3))
			}
		})
	})

	Context("when the context is already canceled", func() {
		BeforeEach(func() {
			cfg.FailSafe = FailSafeZero
		})

		It("times out and applies the fail-safe", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := c.Solve(ctx)
			Expect(err).To(MatchError(nlp.ErrTimeout))
			Expect(res.Converged).To(BeFalse())
			Expect(res.Applied).To(Equal(dynamo.Control{0, 0, 0}))
			Expect(c.Stats().Timeouts).To(Equal(1))
			Expect(c.Phase()).To(Equal(PhaseReady))
		})
	})
})

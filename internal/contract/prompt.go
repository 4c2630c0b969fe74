package contract

import "fmt"

// Fixed warning texts the model is told to emit for HEAT and COLD.
const (
	HeatWarning = "Neutralización por calor detectada (O >= 16). Contradicción térmica inminente."
	ColdWarning = "Neutralización por frío detectada (H >= 14). Congelación molecular inminente."
)

// Classification thresholds applied by the model, never locally.
const (
	OxygenThreshold   = 16
	HydrogenThreshold = 14
)

// ChatSystemInstruction is the tutor persona used for every chat session.
const ChatSystemInstruction = `Eres Skynet, un tutor experto en química. Responde SIEMPRE en español. Monitorea "Neutralización por Frío" (Hidrógeno >= 14) y "Neutralización por Calor" (Oxígeno >= 16).`

const balancePromptTemplate = `You are "Skynet", an advanced AI chemistry calculator. You MUST respond in Spanish.

Analyze the following chemical equation: "%s"

Perform the following checks strictly in this order:

1. **Atom Count Check (Reactants & Potential Products)**:
   - Count the TOTAL number of Hydrogen (H) atoms involved.
   - Count the TOTAL number of Oxygen (O) atoms involved.

2. **Neutralization Determination**:
   - **Neutralización por Calor (HEAT)**: If Total Oxygen (O) >= %d.
     - Set 'neutralizationType' to 'HEAT'.
     - Set 'warningMessage' to "%s"
   - **Neutralización por Frío (COLD)**: If Total Hydrogen (H) >= %d.
     - Set 'neutralizationType' to 'COLD'.
     - Set 'warningMessage' to "%s"

   *Priority*: If both thresholds are met, prioritize the one with the higher count relative to its threshold, or default to HEAT.

3. **Solvability Check**:
   - Can this equation physically exist and be balanced?
   - If NO (contradiction/impossible):
     - Set 'isSolvable' to false.
     - IF a Neutralization (HEAT/COLD) was detected above, KEEP that neutralization type. The cause of the contradiction is the excess atoms.
     - IF NO Neutralization was detected above, set 'neutralizationType' to 'IMPOSSIBLE' and explain the contradiction in 'warningMessage'.

Output requirements:
- Even if neutralizations occur or it is impossible, provide the balanced equation and steps if mathematically possible/approximable, otherwise explain the failure.
- **Synthesis**: Summarize the result.

Return your response in the specified structured JSON format only.`

// Prompt builds the balancing instruction for one equation.
// The equation is embedded verbatim.
func Prompt(equation string) string {
	return fmt.Sprintf(balancePromptTemplate, equation, OxygenThreshold, HeatWarning, HydrogenThreshold, ColdWarning)
}

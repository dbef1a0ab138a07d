// Package lang implements the sassy stylesheet compiler core.
//
// A stylesheet arrives as a tree of [Node] values decoded from YAML (see
// [ParseYAML]). The tree is dynamic: it may declare variables, functions
// and mixins, import other files, and use control constructs. Compilation
// turns it into flat CSS rules in stages:
//
//  1. [CheckNesting] rejects structurally illegal trees.
//  2. The evaluator resolves every dynamic construct, producing a static
//     tree of rules, properties, comments, CSS imports and extend
//     directives. Rule nodes carry their fully resolved selector.
//  3. [CheckNesting] runs again on the static tree.
//  4. [Flatten] lifts nested rules to the top level and collects extend
//     directives into an [ExtendMap].
//  5. [Extend] rewrites selectors of rules matched by extend directives.
//
// [Compile] runs the whole pipeline. [Format] writes the result as CSS.
//
// # Generated programs
//
// [Generate] is an alternative to step 2. It compiles the dynamic tree
// into a line-oriented program text in which every imported file becomes
// one named unit, emitted once and invoked from each import site.
// Importers are embedded in the program by value so that it can run in a
// later session. [CompileProgram] parses program text (memoized by content
// hash) and [Program.Run] executes it, followed by steps 3 to 5.
//
// Both backends share the same [Env] scoping rules and produce identical
// output for the same input.
//
// # Expressions
//
// Expressions use the expr-lang syntax with a few additions. Identifiers
// starting with "$" read variables and bare identifiers evaluate to their
// own name as an unquoted string. Hyphenated names such as $font-size and
// sans-serif are joined back into single identifiers, and a call like
// darken-by(1) invokes a user function or builtin of that name.
//
// Text fields such as selectors and property values are interpolated:
// literal text with #{expr} segments.
package lang

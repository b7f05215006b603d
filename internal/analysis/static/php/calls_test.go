package php

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/phpsca/internal/analysis/core"
)

const functionsSrc = `
<?php
$outside = $_GET[1];

function test($var1, $var2, $var3 = 'foo') {
    echo $_GET['var'];
    echo $var1;

    $a = $var2;
    $b = $a;
    if ($spam == $eggs) {
        system($b);
    }
    echo $var3;
    echo $outside;
    $inside = $_GET[1];
}
function dead_code($var1, $var2) {
    echo $_GET[1];
}
$foo = $_POST['something'];
test($foo, $outside, $_GET[1]);
test($_GET[1], 'param2');
echo $inside;
?>`

func TestFunctions_ContextSensitiveTraces(t *testing.T) {
	a := analyze(t, functionsSrc)

	vulns := a.Vulns()
	assert.Len(t, vulns[core.ClassXSS], 5)
	assert.Len(t, vulns[core.ClassOSCommanding], 1)

	calls := sinkCalls(t, a, 7)
	echoGet, echoVar1, sysB, echoVar3, echoOutside, echoDead, echoInside :=
		calls[0], calls[1], calls[2], calls[3], calls[4], calls[5], calls[6]

	// One trace per call context.
	require.Len(t, echoGet.Traces(), 2)
	for _, tr := range echoGet.Traces() {
		assert.Equal(t, core.ClassXSS, tr.Class)
	}
	assert.Equal(t, []core.VulnClass{core.ClassXSS}, echoGet.VulnTypes())

	// Each trace ends at the root supplied by its own call site.
	traces := echoVar1.Traces()
	require.Len(t, traces, 2)
	first, second := traces[0].Chain, traces[1].Chain
	assert.Equal(t, "$foo", first[len(first)-2].Name)
	assert.Equal(t, "$_POST", traces[0].Source().Name)
	assert.Equal(t, 21, traces[0].Source().Line)
	assert.Equal(t, "$_GET", traces[1].Source().Name)
	assert.Equal(t, 23, traces[1].Source().Line)
	assert.Equal(t, "$var1", second[1].Name)
	assert.Equal(t, KindParam, second[1].Kind)
	assert.Equal(t, "test@22", traces[0].Context)
	assert.Equal(t, "test@23", traces[1].Context)
	assert.Equal(t, 0, traces[1].Arg)

	// Only the first context passes a tainted second argument.
	require.Len(t, sysB.Traces(), 1)
	chain := sysB.Traces()[0].Chain
	assert.Equal(t, core.ClassOSCommanding, sysB.Traces()[0].Class)
	assert.Equal(t, []string{"$b", "$b", "$a", "$var2", "$outside", "$_GET"}, names(chain))
	assert.Equal(t, 3, chain[len(chain)-2].Line)
	// The last context passed a literal, so the current class set is empty.
	assert.Empty(t, sysB.VulnTypes())

	require.Len(t, echoVar3.Traces(), 1)
	assert.Equal(t, 22, echoVar3.Traces()[0].Source().Line)

	assert.Empty(t, echoOutside.Traces(), "functions do not see global locals")
	assert.Empty(t, echoInside.Traces(), "globals do not see function locals")

	dead := a.Functions()["dead_code"]
	require.NotNil(t, dead)
	assert.True(t, dead.Dead())
	require.NotNil(t, dead.Scope())
	assert.True(t, dead.Scope().Dead())
	assert.True(t, echoDead.Dead())
	assert.Empty(t, echoDead.Traces())

	live := a.Functions()["test"]
	assert.False(t, live.Dead())
	assert.Len(t, live.Scopes(), 2)
	assert.Len(t, live.Contexts(), 2)
}

func TestFunctions_GlobalImport(t *testing.T) {
	a := analyze(t, `<?php
$cmd = $_GET['c'];
function run() {
    global $cmd;
    system($cmd);
}
function norun() {
    system($cmd);
}
run();
norun();
`)
	calls := sinkCalls(t, a, 2)
	assert.Equal(t, []core.VulnClass{core.ClassOSCommanding}, calls[0].VulnTypes())
	assert.Empty(t, calls[1].VulnTypes())
}

func TestFunctions_ReturnValues(t *testing.T) {
	a := analyze(t, `<?php
function wrap($v) {
    if ($v) {
        return $v;
    }
    return 'none';
}
function clean($v) {
    return htmlentities($v);
}
echo wrap($_GET['a']);
echo clean($_GET['b']);
`)
	calls := sinkCalls(t, a, 2)
	assert.Equal(t, []core.VulnClass{core.ClassXSS}, calls[0].VulnTypes())
	assert.Empty(t, calls[1].VulnTypes())
}

func TestFunctions_CallBeforeDeclaration(t *testing.T) {
	a := analyze(t, `<?php
run($_GET['x']);
function run($c) { system($c); }
`)
	assert.Len(t, a.FuncCalls(true), 1)
}

func TestFunctions_ConditionalDeclarationIsOpaque(t *testing.T) {
	a := analyze(t, `<?php
if ($x) {
    function maybe($c) { system($c); }
}
maybe($_GET['x']);
`)
	fn := a.Functions()["maybe"]
	require.NotNil(t, fn)
	assert.True(t, fn.Conditional)
	assert.True(t, fn.Dead())
	assert.Empty(t, a.FuncCalls(true))
}

func TestFunctions_CaseInsensitiveNames(t *testing.T) {
	a := analyze(t, `<?php
function RunIt($c) { SYSTEM($c); }
runit($_GET['x']);
`)
	calls := a.FuncCalls(true)
	require.Len(t, calls, 1)
	assert.Equal(t, core.ClassOSCommanding, calls[0].Class)
}

func TestFunctions_RecursionTerminates(t *testing.T) {
	a := analyze(t, `<?php
function f($x) {
    f($x);
    g($x);
    system($x);
}
function g($y) {
    f($y);
}
f($_GET['a']);
`)
	sys := sinkCalls(t, a, 1)[0]
	assert.True(t, sys.IsVulnerable())
	assert.NotEmpty(t, sys.Traces())
	assert.False(t, a.Functions()["g"].Dead())
}

func TestFunctions_RecursionThroughManySites(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 8; i++ {
		body.WriteString("    f($x);\n")
	}
	a := analyze(t, "<?php\nfunction f($x) {\n"+body.String()+"    system($x);\n}\nf($_GET['a']);\n")

	sys := sinkCalls(t, a, 1)[0]
	assert.True(t, sys.IsVulnerable())
	assert.Len(t, sys.Traces(), 1, "re-entry with the same taint adds no context")
	assert.False(t, a.Truncated())
}

func TestFunctions_RecursionWithNewTaintDescends(t *testing.T) {
	a := analyze(t, `<?php
function f($a, $b) {
    system($a);
    f($b, $a);
}
f('ls', $_GET['x']);
`)
	sys := sinkCalls(t, a, 1)[0]
	require.True(t, sys.IsVulnerable(), "the swapped call carries different taint and is walked")
	var sources []string
	for _, tr := range sys.Traces() {
		sources = append(sources, tr.Source().Name)
	}
	assert.Contains(t, sources, "$_GET")
}

func TestFunctions_MaxCallDepth(t *testing.T) {
	src := `<?php
function a($x) { b($x); }
function b($x) { c($x); }
function c($x) { system($x); }
a($_GET['x']);
`
	assert.Len(t, analyze(t, src).FuncCalls(true), 1)

	limited := analyze(t, src, WithMaxCallDepth(2))
	assert.Empty(t, limited.FuncCalls(true))
	// c was reached only through a guarded call, so it is walked as dead code.
	assert.True(t, limited.Functions()["c"].Dead())
}

// -- Classes --

const classesSrc = `
<?php
class A {
    private $prop1 = 'ok';

    function foo($var1) {
        echo $_GET[1];
        $this->prop1 = $var1;
    }

    function bar($prop2 = 'default') {
        echo $this->prop1;
        $this->prop2 = $prop2;
    }

    function baz() {
        if (1) {
            system($this->prop2);
        }
    }
}

$obj1 = new A();
$obj1->foo($_GET[1]); #XSS
$obj1->bar(); #XSS
$obj1->baz();

$awsome = $_POST[1];
$obj2 = new A();
$obj2->foo('test'); #XSS
$obj2->bar($awsome);
$obj2->baz(); #OS COMMANDING

$obj1->bar(); #XSS again
?>`

func TestClasses_PerInstanceState(t *testing.T) {
	a := analyze(t, classesSrc)
	vulns := a.Vulns()
	assert.Len(t, vulns[core.ClassXSS], 4)
	require.Len(t, vulns[core.ClassOSCommanding], 1)

	chain := vulns[core.ClassOSCommanding][0].Chain
	assert.Equal(t, 18, chain[0].Line)
	assert.Equal(t, "$_POST", chain[len(chain)-1].Name)
	assert.Contains(t, names(chain), "$awsome")
	for _, v := range chain {
		if v.Name == "$awsome" {
			assert.Equal(t, 28, v.Line)
		}
	}

	objects := a.ObjectsByVar()
	assert.Contains(t, objects, "$obj1")
	assert.Contains(t, objects, "$obj2")
	assert.Len(t, a.Objects(), 2)

	obj1, obj2 := objects["$obj1"], objects["$obj2"]
	assert.True(t, obj1.Property("prop1").ControlledByUser())
	assert.False(t, obj2.Property("prop1").ControlledByUser())
	assert.False(t, obj1.Property("prop2").ControlledByUser())
	assert.True(t, obj2.Property("prop2").ControlledByUser())

	fns := a.Functions()
	for _, name := range []string{"A::foo", "A::bar", "A::baz"} {
		require.Contains(t, fns, name)
		assert.False(t, fns[name].Dead(), name)
	}
	assert.Contains(t, a.Classes(), "A")
}

func TestClasses_MethodsCallingMethods(t *testing.T) {
	a := analyze(t, `
<?php
class A {
    function foo($var) {
        $this->prop = $var;
        $this->baz();
    }

    function bar() {
        include($this->prop);
    }

    function baz() {
        $this->bar();
        echo $_GET[1];
    }
}

$obj1 = new A();
$obj1->foo($_GET[1]); # XSS, FILE
$obj1->bar('clean'); # FILE

$obj2 = new A();
$obj2->bar(); # Clean
$obj2->baz(); # XSS
?>`)
	vulns := a.Vulns()
	assert.Len(t, vulns[core.ClassXSS], 2)
	assert.Len(t, vulns[core.ClassFileInclude], 2)
}

func TestClasses_PropertyThroughUnknownCall(t *testing.T) {
	src := `
<?php
class A {
    function foo($var) {
        $this->prop = $var;
    }

    function bar() {
        $var = 'bla' . somefunc($this->prop);
        echo $var;
    }
}

$obj1 = new A();
$obj1->foo($_GET[1]);
$obj1->bar();
?>`
	assert.Len(t, analyze(t, src, propagate()).Vulns()[core.ClassXSS], 1)
	assert.Empty(t, analyze(t, src).Vulns()[core.ClassXSS])
}

func TestClasses_InheritanceAndConstructor(t *testing.T) {
	a := analyze(t, `<?php
class Base {
    public $cmd = 'ls';
    function __construct($c) {
        $this->cmd = $c;
    }
    function go() {
        system($this->cmd);
    }
}
class Child extends Base {
    function safe() {
        return $this->cmd;
    }
}
$o = new Child($_GET['c']);
$o->go();
$p = new Child('pwd');
$p->go();
`)
	calls := sinkCalls(t, a, 1)
	require.Len(t, calls[0].Traces(), 1)
	assert.Empty(t, calls[0].VulnTypes(), "the last context used a literal")
	assert.True(t, a.Functions()["Child::safe"].Dead())
	assert.Equal(t, "Child", a.ObjectsByVar()["$o"].ClassName)
}

func TestClasses_WeakPropertyWriteInBranch(t *testing.T) {
	a := analyze(t, `<?php
class Box {
    function set($v) { $this->v = $v; }
    function maybeClear() {
        if ($flag) {
            $this->v = 'clear';
        }
    }
    function show() { echo $this->v; }
}
$b = new Box();
$b->set($_GET['v']);
$b->maybeClear();
$b->show();
`)
	assert.Len(t, a.Vulns()[core.ClassXSS], 1)
	prop := a.ObjectsByVar()["$b"].Property("v")
	assert.Equal(t, KindProperty, prop.Kind)
	assert.True(t, prop.ControlledByUser(), "a write that may not run keeps the previous value")
}

func TestClasses_WeakWriteThroughConditionalCall(t *testing.T) {
	a := analyze(t, `<?php
class Runner {
    function set($v) { $this->p = $v; }
    function run() { system($this->p); }
}
$o = new Runner();
$o->set($_GET['x']);
if ($c) {
    $o->set('clean');
}
$o->run();
`)
	assert.Len(t, a.FuncCalls(true), 1, "a call that may not run cannot clear the property")
	assert.True(t, a.ObjectsByVar()["$o"].Property("p").ControlledByUser())
}

func TestClasses_UnconditionalCallReplacesProperty(t *testing.T) {
	a := analyze(t, `<?php
class Runner {
    function set($v) { $this->p = $v; }
    function run() { system($this->p); }
}
$o = new Runner();
$o->set($_GET['x']);
$o->set('clean');
$o->run();
`)
	assert.Empty(t, a.FuncCalls(true))
}

func TestClasses_StaticCalls(t *testing.T) {
	a := analyze(t, `<?php
class Util {
    public static function run($c) {
        system($c);
    }
    public function viaSelf($c) {
        self::run($c);
    }
}
Util::run($_GET['a']);
$u = new Util();
$u->viaSelf($_POST['b']);
`)
	sys := sinkCalls(t, a, 1)[0]
	traces := sys.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, "$_GET", traces[0].Source().Name)
	assert.Equal(t, "$_POST", traces[1].Source().Name)
}

func TestClasses_UnknownMethodFollowsPolicy(t *testing.T) {
	src := `<?php
$db = new Unknown();
$v = $db->fetch($_GET['id']);
echo $v;
`
	assert.Empty(t, analyze(t, src).FuncCalls(true))
	assert.Len(t, analyze(t, src, propagate()).FuncCalls(true), 1)
}
